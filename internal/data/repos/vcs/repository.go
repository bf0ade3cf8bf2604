// Package vcs persists the git repositories under analysis, their bot
// filters, and the commit-level metrics commit_ingestion jobs
// populate.
package vcs

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainvcs "github.com/ckguru/orchestrator/internal/domain/vcs"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

var ErrAlreadyExists = errors.New("repository already registered")

type RepositoryRepo interface {
	Create(dbc dbctx.Context, repo *domainvcs.Repository) (*domainvcs.Repository, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domainvcs.Repository, error)
	GetByGitURL(dbc dbctx.Context, gitURL string) (*domainvcs.Repository, error)
	List(dbc dbctx.Context) ([]*domainvcs.Repository, error)

	ListBotPatterns(dbc dbctx.Context, repositoryID *uuid.UUID) ([]*domainvcs.BotPattern, error)
	CreateBotPattern(dbc dbctx.Context, p *domainvcs.BotPattern) (*domainvcs.BotPattern, error)
}

type repositoryRepo struct {
	db *gorm.DB
}

func NewRepositoryRepo(db *gorm.DB) RepositoryRepo {
	return &repositoryRepo{db: db}
}

func (r *repositoryRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *repositoryRepo) Create(dbc dbctx.Context, repo *domainvcs.Repository) (*domainvcs.Repository, error) {
	if repo == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(repo).Error; err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *repositoryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domainvcs.Repository, error) {
	var repo domainvcs.Repository
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&repo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &repo, nil
}

func (r *repositoryRepo) GetByGitURL(dbc dbctx.Context, gitURL string) (*domainvcs.Repository, error) {
	var repo domainvcs.Repository
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("git_url = ?", gitURL).Limit(1).Find(&repo).Error
	if err != nil {
		return nil, err
	}
	if repo.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &repo, nil
}

func (r *repositoryRepo) List(dbc dbctx.Context) ([]*domainvcs.Repository, error) {
	var out []*domainvcs.Repository
	if err := r.tx(dbc).WithContext(dbc.Ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListBotPatterns returns the global patterns (repositoryID nil) plus,
// when repositoryID is non-nil, the patterns scoped to that
// repository -- the set an ingestion job consults to decide whether a
// commit author counts as a bot.
func (r *repositoryRepo) ListBotPatterns(dbc dbctx.Context, repositoryID *uuid.UUID) ([]*domainvcs.BotPattern, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&domainvcs.BotPattern{})
	if repositoryID != nil {
		q = q.Where("repository_id IS NULL OR repository_id = ?", *repositoryID)
	} else {
		q = q.Where("repository_id IS NULL")
	}
	var out []*domainvcs.BotPattern
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryRepo) CreateBotPattern(dbc dbctx.Context, p *domainvcs.BotPattern) (*domainvcs.BotPattern, error) {
	if p == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}
