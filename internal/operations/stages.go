package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	"salesdash/internal/nn"
	"salesdash/internal/report"
)

// StageOptions carries the dependencies shared by the run steps
type StageOptions struct {
	Paths      *config.Paths
	Data       config.DataConfig
	Pipeline   config.PipelineConfig
	Training   config.TrainingConfig
	Downloader dataset.Downloader
	Writer     *exporter.CSVWriter

	StatusBroadcaster *StatusBroadcaster
	Metrics           *infrastructure.BusinessMetrics
	Logger            *slog.Logger
}

func (o *StageOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// stepBase bundles the step identity with progress reporting
type stepBase struct {
	BaseStage
	options *StageOptions
	logger  *slog.Logger
}

func newStepBase(id, name string, deps []string, options *StageOptions) stepBase {
	return stepBase{
		BaseStage: NewBaseStage(id, name, deps),
		options:   options,
		logger:    options.logger().With(slog.String("step", id)),
	}
}

// updateProgress updates the step state and pushes it through the broadcaster
func (s *stepBase) updateProgress(state *OperationState, progress int, message string) {
	stepState := state.GetStage(s.ID())
	if stepState != nil {
		stepState.UpdateProgress(float64(progress), message)
	}
	if s.options.StatusBroadcaster == nil {
		return
	}
	var metadata map[string]interface{}
	if stepState != nil {
		metadata = stepState.MetadataCopy()
	}
	s.options.StatusBroadcaster.UpdateStepWithMetadata(state.ID, s.ID(), progress, message, metadata)
}

func (s *stepBase) setMetadata(state *OperationState, key string, value interface{}) {
	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMetadata(key, value)
	}
}

// AcquisitionStage makes sure both raw tables are on disk
type AcquisitionStage struct {
	stepBase
	fetcher *dataset.Fetcher
}

// NewAcquisitionStage creates the acquisition step
func NewAcquisitionStage(options *StageOptions) *AcquisitionStage {
	s := &AcquisitionStage{
		stepBase: newStepBase(StepIDAcquisition, StepNameAcquisition, nil, options),
	}
	s.fetcher = dataset.NewFetcher(options.Downloader, s.logger)
	s.fetcher.OnDownload = func(ctx context.Context, src dataset.Source, bytes int64) {
		if m := options.Metrics; m != nil {
			m.BytesDownloaded.Add(ctx, bytes, metric.WithAttributes(attribute.String("source", src.Name)))
		}
	}
	return s
}

// Validate checks that the step has somewhere to download to
func (s *AcquisitionStage) Validate(state *OperationState) error {
	if s.options.Paths == nil {
		return fmt.Errorf("paths not configured")
	}
	if s.options.Downloader == nil {
		return fmt.Errorf("no downloader configured")
	}
	return nil
}

// Sources lists the two raw tables
func (s *AcquisitionStage) Sources() []dataset.Source {
	return []dataset.Source{
		{Name: "train", FileID: s.options.Data.TrainFileID, Path: s.options.Paths.TrainCSV()},
		{Name: "store", FileID: s.options.Data.StoreFileID, Path: s.options.Paths.StoreCSV()},
	}
}

// Execute downloads whichever table is missing locally
func (s *AcquisitionStage) Execute(ctx context.Context, state *OperationState) error {
	s.updateProgress(state, 10, "Checking local data files...")

	if err := s.fetcher.Ensure(ctx, s.Sources()...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewExecutionError(s.ID(), err, false)
	}

	s.setMetadata(state, "train_path", s.options.Paths.TrainCSV())
	s.setMetadata(state, "store_path", s.options.Paths.StoreCSV())
	s.updateProgress(state, 99, "Data files available")
	return nil
}

// PreprocessingStage turns the raw tables into the feature table
type PreprocessingStage struct {
	stepBase
}

// NewPreprocessingStage creates the preprocessing step
func NewPreprocessingStage(options *StageOptions) *PreprocessingStage {
	return &PreprocessingStage{
		stepBase: newStepBase(StepIDPreprocessing, StepNamePreprocessing, []string{StepIDAcquisition}, options),
	}
}

// Validate checks that the raw tables exist
func (s *PreprocessingStage) Validate(state *OperationState) error {
	for _, path := range []string{s.options.Paths.TrainCSV(), s.options.Paths.StoreCSV()} {
		if !config.FileExists(path) {
			return fmt.Errorf("input file missing: %s", path)
		}
	}
	if s.options.Writer == nil {
		return fmt.Errorf("no csv writer configured")
	}
	return nil
}

// Execute runs the feature pipeline and exports its output table
func (s *PreprocessingStage) Execute(ctx context.Context, state *OperationState) error {
	scale := s.options.Pipeline.ScaleBeforeSplit
	s.updateProgress(state, 5, "Loading and transforming data...")

	table, err := dataset.NewPipeline(s.logger, scale).Run(s.options.Paths.TrainCSV(), s.options.Paths.StoreCSV())
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setMetadata(state, "rows", table.Rows())
	s.setMetadata(state, "columns", len(table.Columns()))
	s.updateProgress(state, 60, fmt.Sprintf("Transformed %d rows, writing preprocessed data...", table.Rows()))

	artifact, err := s.options.Writer.WriteTable(ctx, s.options.Paths.PreprocessedCSV(), table)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewExecutionError(s.ID(), fmt.Errorf("export preprocessed data: %w", err), false)
	}
	if m := s.options.Metrics; m != nil {
		m.RowsPreprocessed.Add(ctx, int64(artifact.Rows))
	}

	x, names, target, err := dataset.Features(table)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeyFeatures, &FeatureSet{
		X:        x,
		Names:    names,
		Target:   target,
		Scaled:   scale,
		Artifact: artifact,
	})
	s.setMetadata(state, "features", len(names))
	s.updateProgress(state, 99, fmt.Sprintf("%s: %d rows, %d features",
		PreprocessingCompleteMessage, table.Rows(), len(names)))
	return nil
}

// SplitStage partitions the feature matrix into training and holdout rows
type SplitStage struct {
	stepBase
}

// NewSplitStage creates the split step
func NewSplitStage(options *StageOptions) *SplitStage {
	return &SplitStage{
		stepBase: newStepBase(StepIDSplit, StepNameSplit, []string{StepIDPreprocessing}, options),
	}
}

// Execute shuffles with the configured seed and, when the pipeline left
// the table unscaled, fits the scaler on the training rows only
func (s *SplitStage) Execute(ctx context.Context, state *OperationState) error {
	features, err := contextValue[*FeatureSet](state, ContextKeyFeatures)
	if err != nil {
		return err
	}

	split, err := dataset.TrainTestSplit(features.X, features.Target, s.options.Pipeline.TestSize, s.options.Pipeline.Seed)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	split.Features = features.Names

	if !features.Scaled {
		s.updateProgress(state, 50, "Fitting scaler on training rows...")
		scaler, err := dataset.FitMatrix(split.XTrain, split.Features, dataset.ScaledColumns...)
		if err != nil {
			return NewExecutionError(s.ID(), err, false)
		}
		if err := scaler.TransformMatrix(split.XTrain, split.Features); err != nil {
			return NewExecutionError(s.ID(), err, false)
		}
		if err := scaler.TransformMatrix(split.XTest, split.Features); err != nil {
			return NewExecutionError(s.ID(), err, false)
		}
	}

	state.SetContext(ContextKeySplit, split)
	s.setMetadata(state, "train_rows", len(split.YTrain))
	s.setMetadata(state, "test_rows", len(split.YTest))
	s.updateProgress(state, 99, fmt.Sprintf("%d training rows, %d holdout rows", len(split.YTrain), len(split.YTest)))
	return nil
}

// TrainingStage builds and fits the network
type TrainingStage struct {
	stepBase
}

// NewTrainingStage creates the training step
func NewTrainingStage(options *StageOptions) *TrainingStage {
	return &TrainingStage{
		stepBase: newStepBase(StepIDTraining, StepNameTraining, []string{StepIDSplit}, options),
	}
}

// Validate checks the run settings before any work is done. Range checks
// on the form happen at the HTTP boundary; nn.Build rejects the rest.
func (s *TrainingStage) Validate(state *OperationState) error {
	hp, err := hyperparameters(state)
	if err != nil {
		return err
	}
	if hp.Epochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", hp.Epochs)
	}
	if s.options.Training.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", s.options.Training.BatchSize)
	}
	return nil
}

// Execute trains for the requested number of epochs, streaming every epoch
func (s *TrainingStage) Execute(ctx context.Context, state *OperationState) error {
	hp, err := hyperparameters(state)
	if err != nil {
		return err
	}
	split, err := contextValue[dataset.Split](state, ContextKeySplit)
	if err != nil {
		return err
	}

	_, cols := split.XTrain.Dims()
	net, err := nn.Build(cols, hp, s.options.Training.Seed)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	s.setMetadata(state, "parameters", net.Summary().TotalParams)

	tracker := NewProgressTracker(hp.Epochs)
	metrics := s.options.Metrics
	onEpoch := func(r nn.EpochResult) {
		tracker.Update(r.Epoch)
		s.setMetadata(state, "epoch", r.Epoch)
		s.setMetadata(state, "loss", r.Loss)
		s.setMetadata(state, "val_loss", r.ValLoss)
		s.setMetadata(state, "mae", r.MAE)
		s.setMetadata(state, "val_mae", r.ValMAE)
		s.updateProgress(state, min(tracker.Percent(), 99), fmt.Sprintf(
			"Epoch %d/%d - loss %.4f - val_loss %.4f - ETA %s",
			r.Epoch, r.Epochs, r.Loss, r.ValLoss, tracker.ETAString()))

		if s.options.StatusBroadcaster != nil {
			s.options.StatusBroadcaster.BroadcastEpoch(state.ID, r)
		}
		if metrics != nil {
			metrics.EpochsTrained.Add(ctx, 1)
		}
	}

	s.updateProgress(state, 0, fmt.Sprintf("Training %d epochs...", hp.Epochs))
	start := time.Now()
	history, err := net.Fit(ctx, split.XTrain, split.YTrain, split.XTest, split.YTest, nn.FitOptions{
		Epochs:    hp.Epochs,
		BatchSize: s.options.Training.BatchSize,
		OnEpoch:   onEpoch,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, nn.ErrNonFinite) {
			return NewExecutionError(s.ID(), fmt.Errorf("%w; try a lower learning rate", err), false)
		}
		return NewExecutionError(s.ID(), err, false)
	}

	if metrics != nil && history.Epochs() > 0 {
		metrics.ValidationLoss.Record(ctx, history.ValLoss[history.Epochs()-1])
	}
	s.logger.InfoContext(ctx, "training finished",
		slog.Int("epochs", history.Epochs()),
		slog.Duration("duration", time.Since(start)))

	state.SetContext(ContextKeyNetwork, net)
	state.SetContext(ContextKeyHistory, history)
	return nil
}

// ReportingStage scores the holdout rows and renders every chart
type ReportingStage struct {
	stepBase
}

// NewReportingStage creates the reporting step
func NewReportingStage(options *StageOptions) *ReportingStage {
	return &ReportingStage{
		stepBase: newStepBase(StepIDReporting, StepNameReporting, []string{StepIDTraining}, options),
	}
}

// Execute builds the report and leaves the run result in the state
func (s *ReportingStage) Execute(ctx context.Context, state *OperationState) error {
	net, err := contextValue[*nn.Network](state, ContextKeyNetwork)
	if err != nil {
		return err
	}
	history, err := contextValue[*nn.History](state, ContextKeyHistory)
	if err != nil {
		return err
	}
	split, err := contextValue[dataset.Split](state, ContextKeySplit)
	if err != nil {
		return err
	}
	features, err := contextValue[*FeatureSet](state, ContextKeyFeatures)
	if err != nil {
		return err
	}

	s.updateProgress(state, 10, "Evaluating holdout set...")
	r, err := report.Build(net, history, split, features.Target)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	s.updateProgress(state, 40, "Rendering charts...")
	charts, err := report.RenderAll(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewExecutionError(s.ID(), fmt.Errorf("render charts: %w", err), false)
	}

	state.SetContext(ContextKeyResult, &RunResult{
		Report:       r,
		Charts:       charts,
		Preprocessed: features.Artifact,
	})

	// the matrices are no longer needed once the report exists
	state.DeleteContext(ContextKeyFeatures)
	state.DeleteContext(ContextKeySplit)
	state.DeleteContext(ContextKeyNetwork)

	for k, v := range r.MetricsDisplay {
		s.setMetadata(state, k, v)
	}
	s.updateProgress(state, 99, "Report ready")
	return nil
}

// NewRunSteps creates the five steps of a training run
func NewRunSteps(options *StageOptions) []Step {
	if options == nil {
		options = &StageOptions{}
	}
	return []Step{
		NewAcquisitionStage(options),
		NewPreprocessingStage(options),
		NewSplitStage(options),
		NewTrainingStage(options),
		NewReportingStage(options),
	}
}

var (
	_ Step = (*AcquisitionStage)(nil)
	_ Step = (*PreprocessingStage)(nil)
	_ Step = (*SplitStage)(nil)
	_ Step = (*TrainingStage)(nil)
	_ Step = (*ReportingStage)(nil)
)
