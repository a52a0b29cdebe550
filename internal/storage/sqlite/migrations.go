package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Length limits mirror models.MaxNameLength and models.MaxTextLength.
const schema = `
CREATE TABLE IF NOT EXISTS persons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL CHECK (length(first_name) <= 50),
    last_name TEXT NOT NULL CHECK (length(last_name) <= 50),
    country TEXT NOT NULL CHECK (length(country) <= 50),
    city TEXT NOT NULL CHECK (length(city) <= 50),
    street_name TEXT NOT NULL CHECK (length(street_name) <= 50),
    street_number INTEGER NOT NULL CHECK (street_number BETWEEN 0 AND 255),
    latitude REAL NOT NULL,
    longitude REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS geocaches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_id INTEGER,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    contents TEXT NOT NULL CHECK (length(contents) <= 255),
    message TEXT NOT NULL CHECK (length(message) <= 255),
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS found_geocaches (
    person_id INTEGER NOT NULL,
    geocache_id INTEGER NOT NULL,
    PRIMARY KEY (person_id, geocache_id),
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
    FOREIGN KEY (geocache_id) REFERENCES geocaches(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_geocaches_person_id ON geocaches(person_id);
CREATE INDEX IF NOT EXISTS idx_found_geocaches_geocache_id ON found_geocaches(geocache_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
