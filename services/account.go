package services

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/c360studio/udahub/capability/tools"
)

// AccountService serves customer account lookups from SQLite. It holds both
// the external product records (users, experiences, reservations) and the
// hub's own records (core users, tickets) so one lookup can return the
// combined view.
type AccountService struct {
	db *sql.DB
}

// NewAccountService opens (or creates) the account database at path.
func NewAccountService(path string) (*AccountService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open account db: %w", err)
	}
	s := &AccountService{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AccountService) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS external_users (
			user_id TEXT PRIMARY KEY,
			name    TEXT NOT NULL DEFAULT '',
			email   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS experiences (
			experience_id TEXT PRIMARY KEY,
			title         TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			reservation_id TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			experience_id  TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id)`,
		`CREATE TABLE IF NOT EXISTS core_users (
			user_id          TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL DEFAULT '',
			external_user_id TEXT NOT NULL,
			user_name        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_core_users_external ON core_users(external_user_id)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			ticket_id TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate account db: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *AccountService) Close() error {
	return s.db.Close()
}

// GetUser returns the combined external and core view for a customer.
// Missing records come back as nil rather than an error.
func (s *AccountService) GetUser(externalUserID string) (*tools.AccountView, error) {
	view := &tools.AccountView{}

	var ext tools.ExternalUser
	err := s.db.QueryRow(`SELECT user_id, name, email FROM external_users WHERE user_id = ?`, externalUserID).
		Scan(&ext.UserID, &ext.Name, &ext.Email)
	switch {
	case err == sql.ErrNoRows:
		// Unknown external user, still report core side.
	case err != nil:
		return nil, fmt.Errorf("lookup external user %s: %w", externalUserID, err)
	default:
		view.ExternalUser = &ext
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM reservations WHERE user_id = ?`, externalUserID).
			Scan(&view.ReservationCount); err != nil {
			return nil, fmt.Errorf("count reservations for %s: %w", externalUserID, err)
		}
	}

	var core tools.CoreUser
	err = s.db.QueryRow(`
		SELECT user_id, account_id, external_user_id, user_name
		FROM core_users WHERE external_user_id = ?`, externalUserID).
		Scan(&core.UserID, &core.AccountID, &core.ExternalUserID, &core.UserName)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("lookup core user %s: %w", externalUserID, err)
	default:
		view.CoreUser = &core
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets WHERE user_id = ?`, core.UserID).
			Scan(&view.TicketCount); err != nil {
			return nil, fmt.Errorf("count tickets for %s: %w", core.UserID, err)
		}
	}

	return view, nil
}

// GetReservations lists a customer's reservations with experience info
// attached. Unknown users get an empty list.
func (s *AccountService) GetReservations(externalUserID string) ([]tools.Reservation, error) {
	rows, err := s.db.Query(`
		SELECT r.reservation_id, r.user_id, r.experience_id, r.status,
		       COALESCE(e.title, ''), COALESCE(e.location, '')
		FROM reservations r
		LEFT JOIN experiences e ON e.experience_id = r.experience_id
		WHERE r.user_id = ?
		ORDER BY r.reservation_id`, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("query reservations for %s: %w", externalUserID, err)
	}
	defer rows.Close()

	reservations := []tools.Reservation{}
	for rows.Next() {
		var r tools.Reservation
		if err := rows.Scan(&r.ReservationID, &r.UserID, &r.ExperienceID, &r.Status,
			&r.ExperienceTitle, &r.ExperienceLocation); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return reservations, nil
}

// AddExternalUser inserts an external customer record. Used for seeding.
func (s *AccountService) AddExternalUser(u tools.ExternalUser) error {
	_, err := s.db.Exec(`
		INSERT INTO external_users (user_id, name, email) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		u.UserID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("insert external user %s: %w", u.UserID, err)
	}
	return nil
}

// AddCoreUser inserts a hub customer record. Used for seeding.
func (s *AccountService) AddCoreUser(u tools.CoreUser) error {
	_, err := s.db.Exec(`
		INSERT INTO core_users (user_id, account_id, external_user_id, user_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			account_id = excluded.account_id,
			external_user_id = excluded.external_user_id,
			user_name = excluded.user_name`,
		u.UserID, u.AccountID, u.ExternalUserID, u.UserName)
	if err != nil {
		return fmt.Errorf("insert core user %s: %w", u.UserID, err)
	}
	return nil
}

// AddExperience inserts an experience record. Used for seeding.
func (s *AccountService) AddExperience(experienceID, title, location string) error {
	_, err := s.db.Exec(`
		INSERT INTO experiences (experience_id, title, location) VALUES (?, ?, ?)
		ON CONFLICT(experience_id) DO UPDATE SET title = excluded.title, location = excluded.location`,
		experienceID, title, location)
	if err != nil {
		return fmt.Errorf("insert experience %s: %w", experienceID, err)
	}
	return nil
}

// AddReservation inserts a reservation record. Used for seeding.
func (s *AccountService) AddReservation(r tools.Reservation) error {
	_, err := s.db.Exec(`
		INSERT INTO reservations (reservation_id, user_id, experience_id, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(reservation_id) DO UPDATE SET status = excluded.status`,
		r.ReservationID, r.UserID, r.ExperienceID, r.Status)
	if err != nil {
		return fmt.Errorf("insert reservation %s: %w", r.ReservationID, err)
	}
	return nil
}

// AddTicketRecord inserts a ticket ownership record. Used for seeding.
func (s *AccountService) AddTicketRecord(ticketID, userID string) error {
	_, err := s.db.Exec(`
		INSERT INTO tickets (ticket_id, user_id) VALUES (?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET user_id = excluded.user_id`,
		ticketID, userID)
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", ticketID, err)
	}
	return nil
}

func (s *AccountService) handleGetUser(data []byte) (any, error) {
	var req tools.AccountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode account request: %w", err)
	}
	return s.GetUser(req.ExternalUserID)
}

func (s *AccountService) handleGetReservations(data []byte) (any, error) {
	var req tools.AccountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode account request: %w", err)
	}
	return s.GetReservations(req.ExternalUserID)
}
