package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

type seedTechnician struct {
	name        string
	phone       string
	email       string
	zipCodes    []string
	specialties []string
}

var seedTechnicians = []seedTechnician{
	{"Alex Martinez", "555-1001", "alex.martinez@fixline.example.com",
		[]string{"60601", "60602", "60603"}, []string{"refrigerator", "washer"}},
	{"Maria Chen", "555-1002", "maria.chen@fixline.example.com",
		[]string{"10001", "10002", "60601"}, []string{"washer", "dryer"}},
	{"John Patel", "555-1003", "john.patel@fixline.example.com",
		[]string{"60601", "10001", "90210"}, []string{"dryer", "dishwasher", "oven"}},
	{"Priya Singh", "555-1004", "priya.singh@fixline.example.com",
		[]string{"90210", "90211", "90212"}, []string{"refrigerator", "hvac"}},
	{"David Johnson", "555-1005", "david.johnson@fixline.example.com",
		[]string{"60601", "60602", "10001"}, []string{"hvac", "oven"}},
	{"Emily Clark", "555-1006", "emily.clark@fixline.example.com",
		[]string{"10001", "10002", "10003"}, []string{"washer", "dryer", "dishwasher"}},
	{"Michael Brown", "555-1007", "michael.brown@fixline.example.com",
		[]string{"90210", "60601", "77001"}, []string{"refrigerator", "oven"}},
	{"Sarah Lopez", "555-1008", "sarah.lopez@fixline.example.com",
		[]string{"77001", "77002", "77003"}, []string{"washer", "dryer", "hvac"}},
	{"Kevin Nguyen", "555-1009", "kevin.nguyen@fixline.example.com",
		[]string{"60601", "60602", "77001"}, []string{"dishwasher", "oven", "refrigerator"}},
	{"Laura Garcia", "555-1010", "laura.garcia@fixline.example.com",
		[]string{"10001", "90210", "77001"}, []string{"hvac", "washer", "dryer"}},
}

// Seed loads the demo technician roster with service areas, specialties and
// ten days of morning and afternoon availability. A non-empty technicians
// table skips the whole seed.
func (s *Store) Seed(ctx context.Context, logger *log.Logger) error {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM technicians`).Scan(&count); err != nil {
		return fmt.Errorf("seed: count technicians: %w", err)
	}
	if count > 0 {
		logger.Printf("seed: data already exists, skipping")
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	morningBase := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.UTC)
	afternoonBase := time.Date(now.Year(), now.Month(), now.Day(), 13, 0, 0, 0, time.UTC)

	var areas, specialties, slots int
	for _, tech := range seedTechnicians {
		var techID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO technicians (name, phone, email) VALUES ($1,$2,$3) RETURNING id
		`, tech.name, tech.phone, tech.email).Scan(&techID)
		if err != nil {
			return fmt.Errorf("seed: insert technician %s: %w", tech.name, err)
		}

		for _, zip := range tech.zipCodes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO technician_service_areas (technician_id, zip_code) VALUES ($1,$2)
			`, techID, zip); err != nil {
				return fmt.Errorf("seed: insert service area: %w", err)
			}
			areas++
		}
		for _, appliance := range tech.specialties {
			if _, err := tx.Exec(ctx, `
				INSERT INTO technician_specialties (technician_id, appliance_type) VALUES ($1,$2)
			`, techID, appliance); err != nil {
				return fmt.Errorf("seed: insert specialty: %w", err)
			}
			specialties++
		}

		// Morning 9-12 and afternoon 1-4 slots for the next ten days.
		for day := 1; day <= 10; day++ {
			morning := morningBase.AddDate(0, 0, day)
			afternoon := afternoonBase.AddDate(0, 0, day)
			for _, start := range []time.Time{morning, afternoon} {
				if _, err := tx.Exec(ctx, `
					INSERT INTO availability_slots (technician_id, start_time, end_time, is_booked)
					VALUES ($1,$2,$3,FALSE)
				`, techID, start, start.Add(3*time.Hour)); err != nil {
					return fmt.Errorf("seed: insert slot: %w", err)
				}
				slots++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	logger.Printf("seed: %d technicians, %d service areas, %d specialties, %d availability slots",
		len(seedTechnicians), areas, specialties, slots)
	return nil
}
