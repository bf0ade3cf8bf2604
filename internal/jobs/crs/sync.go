// Package crs is the Capability Registry Sync protocol: at worker
// startup, the process enumerates its three compiled-in plug-in
// registries (cleaning rules, feature-selection algorithms, model
// types) and upserts one row per plug-in into the matching
// registry.EntryRepo table, then marks down any row it previously
// owned that a plug-in no longer advertises. Each registry is built by
// its package's DefaultRegistry constructor rather than through any
// runtime class-scanning, and the upsert itself goes through a gorm
// `clause.OnConflict` rather than a hand-rolled check-then-write.
package crs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ckguru/orchestrator/internal/data/repos/registry"
	domainregistry "github.com/ckguru/orchestrator/internal/domain/registry"
	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/featureselect"
	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
	"github.com/ckguru/orchestrator/internal/platform/dbctx"
	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// Registries bundles the three compiled-in plug-in registries this
// worker process carries.
type Registries struct {
	Cleaning         *cleaning.Registry
	FeatureSelection *featureselect.Registry
	ModelType        *modeltype.Registry
}

// Repos bundles the three EntryRepo instances, one per registry table.
type Repos struct {
	Cleaning         registry.EntryRepo
	FeatureSelection registry.EntryRepo
	ModelType        registry.EntryRepo
}

// SyncAll runs all three syncs. ownedBy identifies this worker
// process/instance (e.g. a hostname or build version) so MarkDownUnlessIn
// only demotes rows this same owner previously advertised, never rows a
// differently-versioned worker is still advertising.
func SyncAll(dbc dbctx.Context, log *logger.Logger, regs Registries, repos Repos, ownedBy string) error {
	if err := syncCleaning(dbc, repos.Cleaning, regs.Cleaning, ownedBy); err != nil {
		return fmt.Errorf("sync cleaning rules: %w", err)
	}
	if err := syncFeatureSelection(dbc, repos.FeatureSelection, regs.FeatureSelection, ownedBy); err != nil {
		return fmt.Errorf("sync feature-selection algorithms: %w", err)
	}
	if err := syncModelTypes(dbc, repos.ModelType, regs.ModelType, ownedBy); err != nil {
		return fmt.Errorf("sync model types: %w", err)
	}
	if log != nil {
		log.Info("capability registry sync complete", "owner", ownedBy)
	}
	return nil
}

func syncCleaning(dbc dbctx.Context, repo registry.EntryRepo, reg *cleaning.Registry, ownedBy string) error {
	rules := append(reg.BatchSafe(), reg.GlobalOnly()...)
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.Name())
		entry := &domainregistry.Entry{
			Name:          rule.Name(),
			DisplayName:   rule.Name(),
			Description:   rule.Description(),
			IsImplemented: true,
			LastUpdatedBy: ownedBy,
			UpdatedAt:     time.Now(),
		}
		if err := repo.Upsert(dbc, entry); err != nil {
			return err
		}
	}
	return repo.MarkDownUnlessIn(dbc, ownedBy, names)
}

func syncFeatureSelection(dbc dbctx.Context, repo registry.EntryRepo, reg *featureselect.Registry, ownedBy string) error {
	algs := reg.All()
	names := make([]string, 0, len(algs))
	for _, alg := range algs {
		names = append(names, alg.Name())
		schema, err := json.Marshal(toRegistryParams(alg.Params()))
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", alg.Name(), err)
		}
		entry := &domainregistry.Entry{
			Name:            alg.Name(),
			DisplayName:     alg.DisplayName(),
			Description:     alg.Description(),
			ParameterSchema: schema,
			IsImplemented:   true,
			LastUpdatedBy:   ownedBy,
			UpdatedAt:       time.Now(),
		}
		if err := repo.Upsert(dbc, entry); err != nil {
			return err
		}
	}
	return repo.MarkDownUnlessIn(dbc, ownedBy, names)
}

func syncModelTypes(dbc dbctx.Context, repo registry.EntryRepo, reg *modeltype.Registry, ownedBy string) error {
	types := reg.All()
	names := make([]string, 0, len(types))
	for _, mt := range types {
		names = append(names, mt.Name())
		schema, err := json.Marshal(toRegistryParamsFromModelType(mt.Params()))
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", mt.Name(), err)
		}
		entry := &domainregistry.Entry{
			Name:            mt.Name(),
			DisplayName:     mt.DisplayName(),
			Description:     mt.Description(),
			ParameterSchema: schema,
			IsImplemented:   true,
			LastUpdatedBy:   ownedBy,
			UpdatedAt:       time.Now(),
		}
		if err := repo.Upsert(dbc, entry); err != nil {
			return err
		}
	}
	return repo.MarkDownUnlessIn(dbc, ownedBy, names)
}

func toRegistryParams(defs []featureselect.ParamDef) []domainregistry.ParamDef {
	out := make([]domainregistry.ParamDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, domainregistry.ParamDef{
			Name:     d.Name,
			Type:     domainregistry.ParamType(d.Type),
			Default:  d.Default,
			Range:    toRegistryRange(d.Range),
			Required: d.Required,
		})
	}
	return out
}

func toRegistryParamsFromModelType(defs []modeltype.ParamDef) []domainregistry.ParamDef {
	out := make([]domainregistry.ParamDef, 0, len(defs))
	for _, d := range defs {
		options := make([]string, 0, len(d.Options))
		for _, o := range d.Options {
			options = append(options, o.Value)
		}
		out = append(out, domainregistry.ParamDef{
			Name:     d.Name,
			Type:     domainregistry.ParamType(d.Type),
			Default:  d.Default,
			Range:    toRegistryRangeModelType(d.Range),
			Options:  options,
			Required: d.Required,
		})
	}
	return out
}

func toRegistryRange(r *featureselect.ParamRange) *domainregistry.ParamRange {
	if r == nil {
		return nil
	}
	return &domainregistry.ParamRange{Min: r.Min, Max: r.Max, Step: r.Step, Log: r.Log}
}

func toRegistryRangeModelType(r *modeltype.ParamRange) *domainregistry.ParamRange {
	if r == nil {
		return nil
	}
	return &domainregistry.ParamRange{Min: r.Min, Max: r.Max, Step: r.Step}
}
