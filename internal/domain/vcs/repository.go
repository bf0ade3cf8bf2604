// Package vcs holds the repository-ingestion entities: the git
// repositories the platform analyzes, bot-filtering patterns, and the
// per-commit metrics commit_ingestion jobs populate.
package vcs

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is a git repository under analysis.
type Repository struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	GitURL string `gorm:"column:git_url;not null;uniqueIndex" json:"git_url"`
	Name   string `gorm:"column:name;not null;index" json:"name"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Repository) TableName() string { return "repository" }

// DeriveName extracts a human-readable repo name from a git URL, e.g.
// "https://github.com/org/repo.git" -> "org/repo".
func DeriveName(gitURL string) string {
	s := strings.TrimSuffix(strings.TrimRight(gitURL, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return s
}

type BotPatternKind string

const (
	BotPatternExact    BotPatternKind = "exact"
	BotPatternWildcard BotPatternKind = "wildcard"
	BotPatternRegex    BotPatternKind = "regex"
)

// BotPattern identifies commit authors to exclude (or, with Exclude
// false, explicitly include) from analysis, optionally scoped to one
// repository.
type BotPattern struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Pattern      string         `gorm:"column:pattern;not null" json:"pattern"`
	Kind         BotPatternKind `gorm:"column:kind;not null" json:"kind"`
	Exclude      bool           `gorm:"column:exclude;not null;default:true" json:"exclude"`
	RepositoryID *uuid.UUID     `gorm:"column:repository_id;index" json:"repository_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (BotPattern) TableName() string { return "bot_pattern" }
