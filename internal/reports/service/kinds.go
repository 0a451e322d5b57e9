package service

import (
	"context"
	"log/slog"

	"dossier/internal/invalidation"
	pmodels "dossier/internal/players/models"
	"dossier/internal/reports/models"
	dErrors "dossier/pkg/domain-errors"
)

// KindSpec is the per-kind part of report creation. Kinds differ only in the
// payload they require and in how that payload is enriched; everything else
// is shared.
type KindSpec interface {
	Kind() models.Kind
	// Validate checks the kind-specific payload before any write.
	Validate(req CreateReportRequest) error
	// Enrich fills derived fields on report. It never fails the creation; the
	// returned signal names players the enrichment itself changed.
	Enrich(ctx context.Context, report *models.Report) invalidation.Signal
}

// DefaultKindSpecs returns the four built-in report kinds.
func DefaultKindSpecs(resolver HandleResolver, logger *slog.Logger) []KindSpec {
	return []KindSpec{
		playerKind{},
		organizationKind{},
		&secondaryHandleKind{kind: models.KindAltAccount, resolver: resolver, logger: logger},
		&secondaryHandleKind{kind: models.KindAffiliatedPeople, resolver: resolver, logger: logger},
	}
}

type playerKind struct{}

func (playerKind) Kind() models.Kind { return models.KindPlayer }

func (playerKind) Validate(req CreateReportRequest) error {
	if req.Body == "" {
		return dErrors.New(dErrors.CodeValidation, "body is required for player reports")
	}
	return nil
}

func (playerKind) Enrich(context.Context, *models.Report) invalidation.Signal {
	return invalidation.New()
}

type organizationKind struct{}

func (organizationKind) Kind() models.Kind { return models.KindOrganization }

func (organizationKind) Validate(req CreateReportRequest) error {
	if req.OrgName == "" {
		return dErrors.New(dErrors.CodeValidation, "org_name is required for organization reports")
	}
	return nil
}

func (organizationKind) Enrich(context.Context, *models.Report) invalidation.Signal {
	return invalidation.New()
}

// secondaryHandleKind backs the relationship kinds, which name a second handle
// and link it to a player when the handle resolves.
type secondaryHandleKind struct {
	kind     models.Kind
	resolver HandleResolver
	logger   *slog.Logger
}

func (k *secondaryHandleKind) Kind() models.Kind { return k.kind }

func (k *secondaryHandleKind) Validate(req CreateReportRequest) error {
	if req.SecondaryHandle == "" {
		return dErrors.New(dErrors.CodeValidation, "secondary_handle is required for "+string(k.kind)+" reports")
	}
	if err := pmodels.ValidateHandle(req.SecondaryHandle); err != nil {
		return dErrors.New(dErrors.CodeValidation, "secondary_handle: "+err.Error())
	}
	return nil
}

func (k *secondaryHandleKind) Enrich(ctx context.Context, report *models.Report) invalidation.Signal {
	res, err := k.resolver.ResolveByHandle(ctx, report.SecondaryHandle)
	switch {
	case err != nil:
		if k.logger != nil {
			k.logger.WarnContext(ctx, "secondary handle enrichment failed, storing raw handle",
				"report_id", report.ID,
				"secondary_handle", report.SecondaryHandle,
				"error", err,
			)
		}
		return invalidation.New()
	case !res.Found():
		return invalidation.New()
	}
	report.LinkSecondary(res.Player.ID, res.Player.ExternalID, res.Player.CurrentDisplayName)
	return res.Signal
}
