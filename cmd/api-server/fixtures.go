package main

import (
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/citymed/scheduling-core/internal/scheduling"
)

var fixtureSpecialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Pediatrics",
	"Orthopedics",
}

// seedFixtureResources fills the in-memory directory so the service is
// immediately bookable in dev. In production the directory comes from
// Postgres, maintained out-of-band by the external directory service.
func seedFixtureResources(repo *scheduling.MemoryRepository) {
	now := time.Now()
	for _, specialty := range fixtureSpecialties {
		res := scheduling.Resource{
			ID:        uuid.New(),
			Name:      "Dr. " + gofakeit.Name(),
			Specialty: specialty,
			CreatedAt: now,
			UpdatedAt: now,
		}
		repo.PutResource(res)
		log.Printf("fixture resource id=%s name=%q specialty=%q", res.ID, res.Name, res.Specialty)
	}
}
