package db

import (
	"collaborative-spec-editor/internal/domain"
	"log"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&domain.User{},
		&domain.Document{},
		&domain.Section{},
		&domain.SectionDraft{},
		&domain.ConflictLogEntry{},
		&domain.BundleAuditRecord{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	var count int64
	if err := AppDb.Model(&domain.Document{}).Count(&count).Error; err != nil {
		log.Printf("Error checking seed data: %v", err)
		return
	}
	if count > 0 {
		log.Println("Seed data already present")
		return
	}

	doc := domain.Document{
		WorkspaceID: "ws-default",
		Title:       "Example Specification",
		OwnerID:     1,
	}
	if err := AppDb.Create(&doc).Error; err != nil {
		log.Printf("Error seeding document: %v", err)
		return
	}

	sections := []domain.Section{
		{DocumentID: doc.ID, Path: "overview", Title: "Overview", Position: 1, ApprovedVersion: 1, ApprovedContent: "# Overview\n"},
		{DocumentID: doc.ID, Path: "goals", Title: "Goals", Position: 2, ApprovedVersion: 1, ApprovedContent: "# Goals\n"},
		{DocumentID: doc.ID, Path: "design", Title: "Design", Position: 3, ApprovedVersion: 1, ApprovedContent: "# Design\n"},
	}
	if err := AppDb.Create(&sections).Error; err != nil {
		log.Printf("Error seeding sections: %v", err)
		return
	}

	log.Printf("Seeded document %d with %d sections", doc.ID, len(sections))
}
