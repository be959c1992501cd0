package vision

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"
)

// InputSize is the square edge, in pixels, the backbone expects.
const InputSize = 224

// Tensor is an HWC float image with values in [0, 1].
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// Model is the pretrained convolutional backbone. It is treated as a black box
// mapping an input tensor to a raw feature vector.
type Model interface {
	Predict(ctx context.Context, input *Tensor) ([]float32, error)
}

// LocalEmbedder prepares images in-process and runs them through a Model.
type LocalEmbedder struct {
	model Model
	// sem bounds concurrent inference to keep memory flat.
	sem *semaphore.Weighted
}

// NewLocalEmbedder creates a LocalEmbedder allowing maxConcurrent inferences at once.
func NewLocalEmbedder(model Model, maxConcurrent int) *LocalEmbedder {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &LocalEmbedder{
		model: model,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (l *LocalEmbedder) IsEnabled() bool {
	return l.model != nil
}

func (l *LocalEmbedder) Embed(ctx context.Context, image []byte, _ string) ([]float32, error) {
	if l.model == nil {
		return nil, ErrEmbeddingDisabled
	}

	tensor, err := PrepareTensor(image)
	if err != nil {
		return nil, err
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingGeneration, err)
	}
	defer l.sem.Release(1)

	raw, err := l.model.Predict(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingGeneration, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: model returned an empty vector", ErrEmbeddingGeneration)
	}
	return NormalizeL2(raw), nil
}

// PrepareTensor decodes image bytes, resizes them bilinearly to InputSize x InputSize
// and scales RGB channels into [0, 1].
func PrepareTensor(image []byte) (*Tensor, error) {
	src, err := imaging.Decode(bytes.NewReader(image), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrEmbeddingGeneration, err)
	}

	resized := imaging.Resize(src, InputSize, InputSize, imaging.Linear)

	tensor := &Tensor{
		Height:   InputSize,
		Width:    InputSize,
		Channels: 3,
		Data:     make([]float32, InputSize*InputSize*3),
	}
	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < InputSize; x++ {
			px := row[x*4:]
			offset := (y*InputSize + x) * 3
			tensor.Data[offset] = float32(px[0]) / 255
			tensor.Data[offset+1] = float32(px[1]) / 255
			tensor.Data[offset+2] = float32(px[2]) / 255
		}
	}
	return tensor, nil
}
