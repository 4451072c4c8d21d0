package users

const userColumns = `id, name, email, COALESCE(password_hash, ''), role, is_verified, is_active,
		provider, COALESCE(provider_id, ''), COALESCE(avatar_url, ''), created_at, updated_at`

const (
	queryCreate = `
		INSERT INTO users (id, name, email, password_hash, role, is_verified, is_active, provider, provider_id, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)
	`

	queryFindByID = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	queryFindByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	queryFindByProviderID = `
		SELECT ` + userColumns + `
		FROM users
		WHERE provider = $1 AND provider_id = $2
	`

	queryLinkProvider = `
		UPDATE users
		SET provider = $1,
			provider_id = $2,
			avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
			is_verified = TRUE,
			updated_at = NOW()
		WHERE id = $4
		RETURNING ` + userColumns

	queryUpdateProfile = `
		UPDATE users
		SET name = $1, avatar_url = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
		RETURNING ` + userColumns

	queryUpdateRole = `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	queryUpdatePassword = `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`

	queryList = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
)

// schema applied by migrations; kept here so the queries above have a reference
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
	is_verified   BOOLEAN NOT NULL DEFAULT FALSE,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	provider      TEXT NOT NULL DEFAULT 'local' CHECK (provider IN ('local', 'google')),
	provider_id   TEXT,
	avatar_url    TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (provider <> 'local' OR password_hash IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS users_provider_id_idx
	ON users (provider, provider_id) WHERE provider_id IS NOT NULL;
`
