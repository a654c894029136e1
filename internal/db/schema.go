package db

// Timestamps are unix seconds in both dialects.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS lti_consumers (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  name       TEXT NOT NULL,
  secret     TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  username   TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name  TEXT NOT NULL DEFAULT '',
  email      TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_user_profiles (
  id                               INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id                          INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  lti_user_id                      TEXT NOT NULL UNIQUE,
  lis_person_contact_email_primary TEXT NOT NULL DEFAULT '',
  lis_person_name_family           TEXT NOT NULL DEFAULT '',
  lis_person_name_full             TEXT NOT NULL DEFAULT '',
  lis_person_name_given            TEXT NOT NULL DEFAULT '',
  attributes_json                  TEXT NOT NULL DEFAULT '{}',
  updated_at                       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_contexts (
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  context_id    TEXT NOT NULL UNIQUE,
  context_label TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_resources (
  id                  INTEGER PRIMARY KEY AUTOINCREMENT,
  resource_link_id    TEXT NOT NULL UNIQUE,
  resource_link_title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_sessions (
  id         TEXT PRIMARY KEY,
  user_id    INTEGER NOT NULL DEFAULT 0,
  data_json  TEXT NOT NULL DEFAULT '{}',
  expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lti_sessions_expires ON lti_sessions(expires_at);

CREATE TABLE IF NOT EXISTS oauth_nonces (
  consumer_key TEXT NOT NULL,
  nonce        TEXT NOT NULL,
  expires_at   INTEGER NOT NULL,
  PRIMARY KEY (consumer_key, nonce)
);
CREATE INDEX IF NOT EXISTS idx_oauth_nonces_expires ON oauth_nonces(expires_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS lti_consumers (
  id         BIGSERIAL PRIMARY KEY,
  name       TEXT NOT NULL,
  secret     TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
  id         BIGSERIAL PRIMARY KEY,
  username   TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name  TEXT NOT NULL DEFAULT '',
  email      TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_user_profiles (
  id                               BIGSERIAL PRIMARY KEY,
  user_id                          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  lti_user_id                      TEXT NOT NULL UNIQUE,
  lis_person_contact_email_primary TEXT NOT NULL DEFAULT '',
  lis_person_name_family           TEXT NOT NULL DEFAULT '',
  lis_person_name_full             TEXT NOT NULL DEFAULT '',
  lis_person_name_given            TEXT NOT NULL DEFAULT '',
  attributes_json                  TEXT NOT NULL DEFAULT '{}',
  updated_at                       BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_contexts (
  id            BIGSERIAL PRIMARY KEY,
  context_id    TEXT NOT NULL UNIQUE,
  context_label TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_resources (
  id                  BIGSERIAL PRIMARY KEY,
  resource_link_id    TEXT NOT NULL UNIQUE,
  resource_link_title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lti_sessions (
  id         TEXT PRIMARY KEY,
  user_id    BIGINT NOT NULL DEFAULT 0,
  data_json  TEXT NOT NULL DEFAULT '{}',
  expires_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lti_sessions_expires ON lti_sessions(expires_at);

CREATE TABLE IF NOT EXISTS oauth_nonces (
  consumer_key TEXT NOT NULL,
  nonce        TEXT NOT NULL,
  expires_at   BIGINT NOT NULL,
  PRIMARY KEY (consumer_key, nonce)
);
CREATE INDEX IF NOT EXISTS idx_oauth_nonces_expires ON oauth_nonces(expires_at);
`
