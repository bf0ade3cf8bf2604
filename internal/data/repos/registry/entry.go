// Package registry persists the three capability-registry tables
// (cleaning rules, feature-selection algorithms, model types) that
// share the domain/registry.Entry row shape but live in distinct
// tables, one per capability kind synced at worker startup.
package registry

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
)

const (
	TableCleaningRule              = "cleaning_rule_registry"
	TableFeatureSelectionAlgorithm = "feature_selection_registry"
	TableModelTypeDefinition       = "model_type_registry"
)

// EntryRepo is a CRUD + sync surface over one registry table. The
// table name is fixed at construction time (NewEntryRepo), so the
// three registries are three independent repo instances sharing this
// implementation.
type EntryRepo interface {
	// Upsert inserts or refreshes a row discovered during a sync pass.
	Upsert(dbc dbctx.Context, e *domainregistry.Entry) error

	Get(dbc dbctx.Context, name string) (*domainregistry.Entry, error)
	List(dbc dbctx.Context) ([]*domainregistry.Entry, error)

	// MarkDownUnlessIn flags every currently-implemented row whose name
	// is absent from advertisedNames as not implemented -- the
	// "down-flag if owned and not readvertised" half of the sync
	// protocol, scoped to rows whose LastUpdatedBy is ownedBy. It does
	// not change LastUpdatedBy.
	MarkDownUnlessIn(dbc dbctx.Context, ownedBy string, advertisedNames []string) error
}

type entryRepo struct {
	db    *gorm.DB
	table string
}

func NewEntryRepo(db *gorm.DB, table string) EntryRepo {
	return &entryRepo{db: db, table: table}
}

func (r *entryRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := r.db
	if dbc.Tx != nil {
		t = dbc.Tx
	}
	return t.Table(r.table)
}

func (r *entryRepo) Upsert(dbc dbctx.Context, e *domainregistry.Entry) error {
	if e == nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "description", "parameter_schema", "is_implemented", "last_updated_by", "updated_at",
		}),
	}).Create(e).Error
}

func (r *entryRepo) Get(dbc dbctx.Context, name string) (*domainregistry.Entry, error) {
	var e domainregistry.Entry
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("name = ?", name).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entryRepo) List(dbc dbctx.Context) ([]*domainregistry.Entry, error) {
	var out []*domainregistry.Entry
	if err := r.tx(dbc).WithContext(dbc.Ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entryRepo) MarkDownUnlessIn(dbc dbctx.Context, ownedBy string, advertisedNames []string) error {
	q := r.tx(dbc).WithContext(dbc.Ctx).
		Where("last_updated_by = ? AND is_implemented = ?", ownedBy, true)
	if len(advertisedNames) > 0 {
		q = q.Where("name NOT IN ?", advertisedNames)
	}
	return q.Updates(map[string]interface{}{"is_implemented": false}).Error
}
