package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// ErrEstimatorUnavailable is returned when no trained model could be loaded.
// It is a process-lifetime condition: there is no safe default half-life.
var ErrEstimatorUnavailable = errors.New("estimator unavailable")

// Artifact kinds
const (
	KindForest = "forest"
	KindLinear = "linear"
)

// ArtifactVersion is the current artifact format version
const ArtifactVersion = 1

// Artifact is the serialized form of a trained regressor
type Artifact struct {
	Version   int       `json:"version"`
	Kind      string    `json:"kind"`
	Features  []string  `json:"features"`
	TrainedAt time.Time `json:"trainedAt"`
	Samples   int       `json:"samples"`
	Seed      int64     `json:"seed"`

	// Training fit on the synthetic data, for information only
	TrainingRMSE float64 `json:"trainingRmse"`

	Forest *Forest `json:"forest,omitempty"`
	Linear *Linear `json:"linear,omitempty"`
}

// Validate checks the artifact is complete and structurally sound
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if !slices.Equal(a.Features, FeatureNames) {
		return fmt.Errorf("unexpected features %v, want %v", a.Features, FeatureNames)
	}

	switch a.Kind {
	case KindForest:
		if a.Forest == nil {
			return fmt.Errorf("forest artifact without forest")
		}
		return a.Forest.validate()
	case KindLinear:
		if a.Linear == nil {
			return fmt.Errorf("linear artifact without coefficients")
		}
		return a.Linear.validate()
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
}

// Regressor returns the model held by the artifact
func (a *Artifact) Regressor() (Regressor, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Kind == KindLinear {
		return a.Linear, nil
	}
	return a.Forest, nil
}

// Save writes the artifact as JSON
func (a *Artifact) Save(path string) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid artifact: %w", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0600)
}

// DecodeArtifact reads and validates an artifact. Failures wrap ErrEstimatorUnavailable.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decoding artifact: %v", ErrEstimatorUnavailable, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}
	return &a, nil
}

// LoadArtifact opens and decodes an artifact file
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return DecodeArtifact(f)
}
