package cfddns

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Outcome reports what a single update cycle did.
// When Changed is false the record already matched the public address and
// From equals To.
type Outcome struct {
	Changed bool
	From    string
	To      string
}

func (o Outcome) String() string {
	if o.Changed {
		return fmt.Sprintf("updated %s -> %s", o.From, o.To)
	}
	return "no change needed"
}

// Updater performs one check-and-possibly-update pass against the provider.
type Updater struct {
	Provider Provider
	Resolver Resolver
	Logger   *zap.Logger
	// DryRun reports what would change without issuing the write.
	DryRun bool
}

// RunOnce runs a single update cycle:
// credential, zone, and record validation, then the record's current content
// against the resolved public address, then a conditional write.
// The first failing step ends the cycle; nothing is retried here.
func (u *Updater) RunOnce(ctx context.Context) (Outcome, error) {
	logger := u.logger()

	ok, err := u.Provider.VerifyCredential(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("verifying api token: %w", err)
	}
	if !ok {
		return Outcome{}, ErrCredentialInvalid
	}

	ok, err = u.Provider.VerifyZone(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("verifying zone: %w", err)
	}
	if !ok {
		return Outcome{}, ErrZoneInvalid
	}

	ok, err = u.Provider.VerifyRecord(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("verifying record: %w", err)
	}
	if !ok {
		return Outcome{}, u.recordDiagnostics(ctx)
	}

	current, err := u.Provider.CurrentContent(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading current record content: %w", err)
	}
	logger.Debug("record content read", zap.String("content", current))

	public, err := u.Resolver.Resolve(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving public ip: %w", err)
	}
	logger.Debug("public ip resolved", zap.String("ip", public))

	if current == public {
		return Outcome{From: current, To: current}, nil
	}

	if u.DryRun {
		logger.Info("dry run: record update skipped",
			zap.String("from", current),
			zap.String("to", public),
		)
		return Outcome{Changed: true, From: current, To: public}, nil
	}

	if err := u.Provider.Write(ctx, public); err != nil {
		return Outcome{}, fmt.Errorf("writing record: %w", err)
	}
	return Outcome{Changed: true, From: current, To: public}, nil
}

// recordDiagnostics lists the zone's records so the operator can find the ID
// they meant. The listing is advisory: its own failure is carried alongside
// the record error, never instead of it.
func (u *Updater) recordDiagnostics(ctx context.Context) error {
	logger := u.logger()
	listing, err := u.Provider.ListRecords(ctx)
	if err != nil {
		logger.Warn("could not list zone records", zap.Error(err))
		return &RecordInvalidError{ListErr: err}
	}
	for _, r := range listing {
		logger.Info("record in zone",
			zap.String("id", r.ID),
			zap.String("name", r.Name),
			zap.String("type", r.Type),
			zap.String("content", r.Content),
		)
	}
	return &RecordInvalidError{Listing: listing}
}

func (u *Updater) logger() *zap.Logger {
	if u.Logger == nil {
		return zap.NewNop()
	}
	return u.Logger
}
