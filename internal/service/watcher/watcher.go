package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/release-watcher/internal/api/forge"
	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/repository/manifest"
	"github.com/oshokin/release-watcher/internal/service/descriptor"
)

// ManifestRepository reads the packaged version and rewrites it.
type ManifestRepository interface {
	CurrentVersion(ctx context.Context) (release.Version, *release.Manifest, error)
	PrepareBump(ctx context.Context, latest release.Version, suffix string) (*manifest.Bump, error)
	Apply(ctx context.Context, bump *manifest.Bump) error
}

// Gate is the update guard.
type Gate interface {
	Check(ctx context.Context, current, latest release.Version, fallbackRemote string) (release.Decision, error)
}

// DescriptorWriter checksums assets and writes their descriptors.
type DescriptorWriter interface {
	Build(ctx context.Context, assets []descriptor.Asset) ([]release.SourceDescriptor, error)
	Commit(ctx context.Context, descriptors []release.SourceDescriptor) error
}

// OutcomeExporter hands the run outcome to the pipeline.
type OutcomeExporter interface {
	Export(ctx context.Context, outcome release.RunOutcome) error
}

// Dependencies are the strategies and ports a Watcher runs with.
type Dependencies struct {
	Manifest ManifestRepository
	Source   forge.VersionSource
	Gate     Gate
	Assets   descriptor.AssetEnumerator
	Writer   DescriptorWriter
	Exporter OutcomeExporter

	// RevisionSuffix is the packaging revision written with the new version.
	RevisionSuffix string
	// DryRun resolves and guards but writes and exports nothing.
	DryRun bool
}

var errMissingDependency = errors.New("watcher dependency is not set")

// Watcher sequences a single run.
type Watcher struct {
	deps Dependencies
}

// New validates deps and returns a Watcher.
func New(deps Dependencies) (*Watcher, error) {
	switch {
	case deps.Manifest == nil:
		return nil, fmt.Errorf("%w: manifest", errMissingDependency)
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: version source", errMissingDependency)
	case deps.Gate == nil:
		return nil, fmt.Errorf("%w: gate", errMissingDependency)
	case deps.Assets == nil:
		return nil, fmt.Errorf("%w: asset enumerator", errMissingDependency)
	case deps.Writer == nil:
		return nil, fmt.Errorf("%w: descriptor writer", errMissingDependency)
	case deps.Exporter == nil:
		return nil, fmt.Errorf("%w: exporter", errMissingDependency)
	}

	return &Watcher{deps: deps}, nil
}

// Run executes the state machine
//
//	START -> VERSIONS_RESOLVED -> UP_TO_DATE | DUPLICATE | GENERATING -> MANIFEST_UPDATED -> EXPORTED
//
// The export step runs on every path, fatal errors included; in that case
// the exported outcome has Proceed=false and the run error is returned.
func (w *Watcher) Run(ctx context.Context) (outcome release.RunOutcome, err error) {
	transition(ctx, release.StateStart)

	defer func() {
		if w.deps.DryRun {
			logger.InfoKV(ctx, "Dry run, skipping export",
				"proceed", outcome.Proceed, "version", outcome.NewVersion, "branch", outcome.BranchName)

			return
		}

		if exportErr := w.deps.Exporter.Export(ctx, outcome); exportErr != nil {
			err = errors.Join(err, exportErr)
		}

		transition(ctx, release.StateExported)
	}()

	outcome, err = w.run(ctx)
	if err != nil {
		return release.RunOutcome{}, err
	}

	return outcome, nil
}

func (w *Watcher) run(ctx context.Context) (release.RunOutcome, error) {
	current, m, err := w.deps.Manifest.CurrentVersion(ctx)
	if err != nil {
		return release.RunOutcome{}, fmt.Errorf("read local version: %w", err)
	}

	latest, record, err := w.deps.Source.Latest(ctx, m.UpstreamCode)
	if err != nil {
		return release.RunOutcome{}, fmt.Errorf("resolve upstream version: %w", err)
	}

	transition(ctx, release.StateVersionsResolved, "current", current.String(), "latest", latest.String())

	decision, err := w.deps.Gate.Check(ctx, current, latest, m.UpstreamCode)
	if err != nil {
		return release.RunOutcome{}, fmt.Errorf("check for duplicates: %w", err)
	}

	if !decision.Proceed {
		if decision.Reason == release.ReasonDuplicate {
			transition(ctx, release.StateDuplicate, "branch", decision.Branch)
		} else {
			transition(ctx, release.StateUpToDate)
		}

		return release.RunOutcome{}, nil
	}

	transition(ctx, release.StateGenerating, "branch", decision.Branch)

	if err = w.generate(ctx, m.UpstreamCode, record, latest); err != nil {
		return release.RunOutcome{}, err
	}

	if !w.deps.DryRun {
		transition(ctx, release.StateManifestUpdated)
	}

	return release.RunOutcome{
		Proceed:    true,
		NewVersion: latest.String(),
		BranchName: decision.Branch,
	}, nil
}

// generate does every network call and renders every file before the first
// write, so a failure leaves the package tree as it was.
func (w *Watcher) generate(ctx context.Context, repositoryURL string, record release.VersionRecord, latest release.Version) error {
	assets, err := w.deps.Assets.Assets(descriptor.Target{
		RepositoryURL: repositoryURL,
		Record:        record,
		Version:       latest,
	})
	if err != nil {
		return fmt.Errorf("enumerate assets: %w", err)
	}

	descriptors, err := w.deps.Writer.Build(ctx, assets)
	if err != nil {
		return fmt.Errorf("build source descriptors: %w", err)
	}

	bump, err := w.deps.Manifest.PrepareBump(ctx, latest, w.deps.RevisionSuffix)
	if err != nil {
		return fmt.Errorf("prepare manifest: %w", err)
	}

	if w.deps.DryRun {
		logger.InfoKV(ctx, "Dry run, leaving files untouched", "descriptors", len(descriptors), "version", bump.Version)
		return nil
	}

	if err = w.deps.Writer.Commit(ctx, descriptors); err != nil {
		return fmt.Errorf("write source descriptors: %w", err)
	}

	if err = w.deps.Manifest.Apply(ctx, bump); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func transition(ctx context.Context, state release.State, kvs ...any) {
	logger.InfoKV(ctx, "Watcher state", append([]any{"state", string(state)}, kvs...)...)
}
