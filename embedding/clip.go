package embedding

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/nfnt/resize"
	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	clipContextLength = 77
	clipImageSize     = 224
)

// CLIP preprocessing statistics (OpenAI ViT checkpoints).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// CLIPEncoder runs a local CLIP model through ONNX Runtime and serves
// both modalities from the same similarity space. The model directory
// holds textual.onnx, visual.onnx and tokenizer.json.
type CLIPEncoder struct {
	tok     *tokenizer.Tokenizer
	textual *ort.DynamicAdvancedSession
	visual  *ort.DynamicAdvancedSession
	dim     int
	// ONNX Runtime sessions are not safe for concurrent Run calls with
	// shared tensors; serialize inference.
	mu sync.Mutex
}

var ortInitOnce sync.Once

func NewCLIPEncoder(modelDir string, dim int) (*CLIPEncoder, error) {
	tok, err := pretrained.FromFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("load clip tokenizer: %w", err)
	}

	var initErr error
	ortInitOnce.Do(func() {
		if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", initErr)
	}

	textual, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, "textual.onnx"),
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create clip text session: %w", err)
	}
	visual, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, "visual.onnx"),
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		nil,
	)
	if err != nil {
		_ = textual.Destroy()
		return nil, fmt.Errorf("create clip image session: %w", err)
	}

	return &CLIPEncoder{tok: tok, textual: textual, visual: visual, dim: dim}, nil
}

func (e *CLIPEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	enc, err := e.tok.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	inputIDs := make([]int64, clipContextLength)
	attentionMask := make([]int64, clipContextLength)
	ids := enc.GetIds()
	if len(ids) > clipContextLength {
		ids = ids[:clipContextLength]
	}
	for i, id := range ids {
		inputIDs[i] = int64(id)
		attentionMask[i] = 1
	}

	idsTensor, err := ort.NewTensor(ort.NewShape(1, clipContextLength), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(ort.NewShape(1, clipContextLength), attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	return e.run(e.textual, []ort.Value{idsTensor, maskTensor})
}

func (e *CLIPEncoder) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrZeroVector
	}
	pixels := clipPixelValues(img)
	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, clipImageSize, clipImageSize), pixels)
	if err != nil {
		return nil, fmt.Errorf("create pixel_values tensor: %w", err)
	}
	defer pixelTensor.Destroy()

	return e.run(e.visual, []ort.Value{pixelTensor})
}

func (e *CLIPEncoder) run(session *ort.DynamicAdvancedSession, inputs []ort.Value) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	outputs := make([]ort.Value, 1)
	if err := session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output tensor is not float32")
	}
	data := out.GetData()
	if len(data) < e.dim {
		return nil, fmt.Errorf("model produced %d values, want %d", len(data), e.dim)
	}
	vec := make([]float32, e.dim)
	copy(vec, data[:e.dim])
	if err := NormalizeL2(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *CLIPEncoder) Close() error {
	var err error
	if e.textual != nil {
		err = e.textual.Destroy()
		e.textual = nil
	}
	if e.visual != nil {
		if derr := e.visual.Destroy(); err == nil {
			err = derr
		}
		e.visual = nil
	}
	return err
}

// clipPixelValues resizes to 224x224 bilinear and returns CHW float32
// values normalized with the CLIP mean/std.
func clipPixelValues(img image.Image) []float32 {
	scaled := resize.Resize(clipImageSize, clipImageSize, img, resize.Bilinear)
	pixels := make([]float32, 3*clipImageSize*clipImageSize)
	plane := clipImageSize * clipImageSize
	bounds := scaled.Bounds()
	for y := 0; y < clipImageSize; y++ {
		for x := 0; x < clipImageSize; x++ {
			r, g, b, _ := scaled.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*clipImageSize + x
			pixels[i] = (float32(r)/65535.0 - clipMean[0]) / clipStd[0]
			pixels[plane+i] = (float32(g)/65535.0 - clipMean[1]) / clipStd[1]
			pixels[2*plane+i] = (float32(b)/65535.0 - clipMean[2]) / clipStd[2]
		}
	}
	return pixels
}
