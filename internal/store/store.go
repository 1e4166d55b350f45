// Package store persists calls, technicians, availability, appointments and
// upload tokens in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgaros/fixline/internal/speech"
)

// ErrSlotTaken is returned when the chosen slot was booked by someone else
// between offering and selection.
var ErrSlotTaken = errors.New("slot already booked")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Technician services a set of ZIP codes and appliance types.
type Technician struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// AvailableSlot is one unbooked technician time window matching a caller's
// constraints.
type AvailableSlot struct {
	SlotID         int64     `json:"slot_id"`
	TechnicianID   int64     `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
}

// Appointment is the immutable booking record created when a slot is
// reserved. It snapshots the call context; it is never updated afterwards.
type Appointment struct {
	ID             int64     `json:"id"`
	CallID         string    `json:"call_id"`
	CustomerPhone  string    `json:"customer_phone"`
	ZIPCode        string    `json:"zip_code"`
	Appliance      string    `json:"appliance_type"`
	SymptomSummary string    `json:"symptom_summary"`
	ErrorCodes     string    `json:"error_codes"`
	Urgent         bool      `json:"is_urgent"`
	TechnicianID   int64     `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
}

// Call mirrors the telephony provider's view of a call.
type Call struct {
	ProviderCallID string     `json:"provider_call_id"`
	FromNumber     string     `json:"from_number"`
	ToNumber       string     `json:"to_number"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// UploadToken authorizes one image upload for a call. Reset clears the used
// and analysis fields so the same token can accept a replacement photo.
type UploadToken struct {
	Token            string     `json:"token"`
	CallID           string     `json:"call_id"`
	Email            string     `json:"email"`
	Appliance        string     `json:"appliance_type"`
	SymptomSummary   string     `json:"symptom_summary"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	ImagePath        *string    `json:"image_path,omitempty"`
	AnalysisSummary  *string    `json:"analysis_summary,omitempty"`
	Troubleshooting  *string    `json:"troubleshooting_tips,omitempty"`
	IsApplianceImage *bool      `json:"is_appliance_image,omitempty"`
}

// Valid reports whether the token can still accept an upload.
func (t *UploadToken) Valid(now time.Time) bool {
	return t != nil && t.ExpiresAt.After(now) && t.UsedAt == nil
}

// UploadStatus is what the voice flow polls while waiting for a photo.
type UploadStatus struct {
	Token            string `json:"token"`
	Email            string `json:"email"`
	ImageUploaded    bool   `json:"image_uploaded"`
	AnalysisReady    bool   `json:"analysis_ready"`
	AnalysisSummary  string `json:"analysis_summary"`
	Troubleshooting  string `json:"troubleshooting_tips"`
	IsApplianceImage bool   `json:"is_appliance_image"`
}

func (s *Store) UpsertCall(ctx context.Context, c Call) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO calls (provider_call_id, from_number, to_number, status, started_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (provider_call_id) DO UPDATE SET
			from_number = EXCLUDED.from_number,
			to_number = EXCLUDED.to_number,
			status = EXCLUDED.status
	`, c.ProviderCallID, c.FromNumber, c.ToNumber, c.Status, c.StartedAt)
	return err
}

func (s *Store) UpdateCallStatus(ctx context.Context, providerCallID string, status string, at time.Time) error {
	var endedAt *time.Time
	if status == "completed" || status == "canceled" || status == "failed" || status == "busy" || status == "no-answer" {
		endedAt = &at
	}
	_, err := s.db.Exec(ctx, `
		UPDATE calls
		SET status = $1,
		    ended_at = COALESCE($2, ended_at)
		WHERE provider_call_id = $3
	`, status, endedAt, providerCallID)
	return err
}

// FindAvailableSlots returns unbooked future slots whose technician services
// the ZIP and, when an appliance is known, specializes in it. Soonest first.
func (s *Store) FindAvailableSlots(ctx context.Context, zip string, appliance speech.Appliance, pref speech.TimePreference, limit int) ([]AvailableSlot, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT sl.id, t.id, t.name, sl.start_time, sl.end_time
		FROM availability_slots sl
		JOIN technicians t ON t.id = sl.technician_id
		WHERE sl.is_booked = FALSE
		  AND sl.start_time > now()
		  AND sl.technician_id IN (
		      SELECT technician_id FROM technician_service_areas WHERE zip_code = $1
		  )`)
	args := []any{zip}

	if appliance != speech.ApplianceNone {
		sb.WriteString(`
		  AND sl.technician_id IN (
		      SELECT technician_id FROM technician_specialties WHERE appliance_type = $2
		  )`)
		args = append(args, string(appliance))
	}

	switch pref {
	case speech.PreferMorning:
		sb.WriteString(`
		  AND EXTRACT(HOUR FROM sl.start_time) < 12`)
	case speech.PreferAfternoon:
		sb.WriteString(`
		  AND EXTRACT(HOUR FROM sl.start_time) >= 12`)
	}

	sb.WriteString(fmt.Sprintf(`
		ORDER BY sl.start_time ASC
		LIMIT $%d`, len(args)+1))
	args = append(args, limit)

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []AvailableSlot
	for rows.Next() {
		var slot AvailableSlot
		if err := rows.Scan(&slot.SlotID, &slot.TechnicianID, &slot.TechnicianName, &slot.Start, &slot.End); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// BookingRequest is the call context snapshotted into an appointment.
type BookingRequest struct {
	CallID         string
	CustomerPhone  string
	ZIPCode        string
	Appliance      speech.Appliance
	SymptomSummary string
	ErrorCodes     []string
	Urgent         bool
	SlotID         int64
}

// BookAppointment atomically marks the slot booked and creates the
// appointment. Returns ErrSlotTaken when the slot is booked concurrently
// between offering and selection; the dialogue re-queries and retries once.
func (s *Store) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		techID   int64
		techName string
		isBooked bool
		start    time.Time
		end      time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT sl.technician_id, t.name, sl.is_booked, sl.start_time, sl.end_time
		FROM availability_slots sl
		JOIN technicians t ON t.id = sl.technician_id
		WHERE sl.id = $1
		FOR UPDATE OF sl
	`, req.SlotID).Scan(&techID, &techName, &isBooked, &start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slot %d not found", req.SlotID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch slot: %w", err)
	}
	if isBooked {
		return nil, ErrSlotTaken
	}

	if _, err := tx.Exec(ctx, `
		UPDATE availability_slots SET is_booked = TRUE WHERE id = $1
	`, req.SlotID); err != nil {
		return nil, fmt.Errorf("mark slot booked: %w", err)
	}

	appt := &Appointment{
		CallID:         req.CallID,
		CustomerPhone:  req.CustomerPhone,
		ZIPCode:        req.ZIPCode,
		Appliance:      string(req.Appliance),
		SymptomSummary: req.SymptomSummary,
		ErrorCodes:     strings.Join(req.ErrorCodes, ","),
		Urgent:         req.Urgent,
		TechnicianID:   techID,
		TechnicianName: techName,
		Start:          start,
		End:            end,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(call_id, customer_phone, zip_code, appliance_type, symptom_summary, error_codes, is_urgent, technician_id, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, appt.CallID, appt.CustomerPhone, appt.ZIPCode, appt.Appliance, appt.SymptomSummary,
		appt.ErrorCodes, appt.Urgent, appt.TechnicianID, appt.Start, appt.End).Scan(&appt.ID)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return appt, nil
}

// CreateUploadToken issues a fresh upload token for the call.
func (s *Store) CreateUploadToken(ctx context.Context, callID, email string, appliance speech.Appliance, symptomSummary string, ttl time.Duration) (*UploadToken, error) {
	now := time.Now().UTC()
	tok := &UploadToken{
		Token:          strings.ReplaceAll(uuid.NewString(), "-", ""),
		CallID:         callID,
		Email:          email,
		Appliance:      string(appliance),
		SymptomSummary: symptomSummary,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO upload_tokens (token, call_id, email, appliance_type, symptom_summary, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tok.Token, tok.CallID, tok.Email, tok.Appliance, tok.SymptomSummary, tok.CreatedAt, tok.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert upload token: %w", err)
	}
	return tok, nil
}

// GetUploadToken retrieves a token by its string. Returns nil when absent.
func (s *Store) GetUploadToken(ctx context.Context, token string) (*UploadToken, error) {
	tok := &UploadToken{}
	err := s.db.QueryRow(ctx, `
		SELECT token, call_id, email, appliance_type, symptom_summary, created_at, expires_at,
		       used_at, image_path, analysis_summary, troubleshooting_tips, is_appliance_image
		FROM upload_tokens WHERE token = $1
	`, token).Scan(&tok.Token, &tok.CallID, &tok.Email, &tok.Appliance, &tok.SymptomSummary,
		&tok.CreatedAt, &tok.ExpiresAt, &tok.UsedAt, &tok.ImagePath,
		&tok.AnalysisSummary, &tok.Troubleshooting, &tok.IsApplianceImage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload token: %w", err)
	}
	return tok, nil
}

// MarkTokenUsed records the upload.
func (s *Store) MarkTokenUsed(ctx context.Context, token, imagePath string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE upload_tokens SET used_at = now(), image_path = $2 WHERE token = $1
	`, token, imagePath)
	return err
}

// UpdateTokenAnalysis stores the vision verdict for the uploaded image.
func (s *Store) UpdateTokenAnalysis(ctx context.Context, token, summary, troubleshooting string, isAppliance bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE upload_tokens
		SET analysis_summary = $2, troubleshooting_tips = $3, is_appliance_image = $4
		WHERE token = $1
	`, token, summary, troubleshooting, isAppliance)
	return err
}

// ResetUploadForCall clears the used and analysis fields on the call's most
// recent token so the customer can upload a replacement photo. Returns the
// token string, or "" when the call has no token.
func (s *Store) ResetUploadForCall(ctx context.Context, callID string) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `
		UPDATE upload_tokens
		SET used_at = NULL, image_path = NULL, analysis_summary = NULL,
		    troubleshooting_tips = NULL, is_appliance_image = NULL
		WHERE token = (
			SELECT token FROM upload_tokens WHERE call_id = $1
			ORDER BY created_at DESC LIMIT 1
		)
		RETURNING token
	`, callID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reset upload token: %w", err)
	}
	return token, nil
}

// UploadStatusByCall reports whether the call's most recent token has an
// upload and an analysis. Returns nil when the call has no token.
func (s *Store) UploadStatusByCall(ctx context.Context, callID string) (*UploadStatus, error) {
	var (
		status      UploadStatus
		usedAt      *time.Time
		summary     *string
		tips        *string
		isAppliance *bool
	)
	err := s.db.QueryRow(ctx, `
		SELECT token, email, used_at, analysis_summary, troubleshooting_tips, is_appliance_image
		FROM upload_tokens WHERE call_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, callID).Scan(&status.Token, &status.Email, &usedAt, &summary, &tips, &isAppliance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload status: %w", err)
	}

	status.ImageUploaded = usedAt != nil
	status.AnalysisReady = summary != nil
	if summary != nil {
		status.AnalysisSummary = *summary
	}
	if tips != nil {
		status.Troubleshooting = *tips
	}
	status.IsApplianceImage = isAppliance == nil || *isAppliance
	return &status, nil
}

// PurgeExpiredUploadTokens deletes tokens whose expiry is older than cutoff
// and returns the stored image paths so the caller can remove the files.
func (s *Store) PurgeExpiredUploadTokens(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		DELETE FROM upload_tokens WHERE expires_at < $1
		RETURNING image_path
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge upload tokens: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path *string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("purge upload tokens: %w", err)
		}
		if path != nil && *path != "" {
			paths = append(paths, *path)
		}
	}
	return paths, rows.Err()
}
