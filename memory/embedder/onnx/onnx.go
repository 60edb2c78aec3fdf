//go:build onnx

// Package onnx embeds text locally with ONNX Runtime and a BERT-style
// WordPiece tokenizer. Built for all-MiniLM-L6-v2 but any model with
// the same input/output layout works.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath locates libonnxruntime; empty uses the ORT default.
	LibraryPath string

	// Dimensions is the embedding size (default 384 for all-MiniLM-L6-v2).
	Dimensions int
}

// Embedder generates embeddings using ONNX Runtime.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

// maxSequence is the standard sequence length for MiniLM.
const maxSequence = 128

// New creates an ONNX embedder from a model and tokenizer on disk.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text to a normalized embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, maxSequence)
	attentionMask := make([]int64, maxSequence)
	tokenTypeIDs := make([]int64, maxSequence)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	tokenLen := len(tokens)
	if tokenLen > maxSequence-2 { // room for [CLS] and [SEP]
		tokenLen = maxSequence - 2
	}
	for i := 0; i < tokenLen; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}
	inputIDs[tokenLen+1] = int64(e.tokenizer.sepToken)
	attentionMask[tokenLen+1] = 1

	shape := ort.NewShape(1, int64(maxSequence))
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer attentionMaskTensor.Destroy()

	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer tokenTypeIDsTensor.Destroy()

	outputs := []ort.Value{nil}
	err = e.session.Run([]ort.Value{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor}, outputs)
	if err != nil {
		return nil, fmt.Errorf("ONNX inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	embedding, err := pool(outputTensor.GetData(), outputTensor.GetShape(), attentionMask, e.dimensions)
	if err != nil {
		return nil, err
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// pool reduces the model output to one vector: 2D outputs are taken as
// already pooled, 3D outputs are mean-pooled over attended tokens.
func pool(data []float32, shape []int64, attentionMask []int64, dims int) ([]float32, error) {
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), dims)
		}
		embedding := make([]float32, dims)
		copy(embedding, data[:dims])
		return embedding, nil

	case 3:
		batch, seqLen, hidden := shape[0], shape[1], shape[2]
		if batch != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", batch)
		}
		if hidden != int64(dims) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, dims)
		}
		embedding := make([]float32, dims)
		attended := float32(0)
		for i := 0; i < int(seqLen); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * int(hidden)
			for j := 0; j < dims; j++ {
				embedding[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return embedding, nil
		}
		for j := 0; j < dims; j++ {
			embedding[j] /= attended
		}
		return embedding, nil

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}

// wordPieceTokenizer handles BERT-style WordPiece tokenization.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokenizerData struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &tokenizerData); err != nil {
		return nil, err
	}

	return &wordPieceTokenizer{
		vocab:    tokenizerData.Model.Vocab,
		clsToken: 101, // [CLS]
		sepToken: 102, // [SEP]
		unkToken: 100, // [UNK]
	}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	words := strings.Fields(strings.ToLower(text))

	var tokens []int64
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'")
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, subword := range t.split(word) {
			if id, ok := t.vocab[subword]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// split applies longest-prefix WordPiece segmentation.
func (t *wordPieceTokenizer) split(word string) []string {
	var subwords []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			substr := word[start:end]
			if start > 0 {
				substr = "##" + substr
			}
			if _, ok := t.vocab[substr]; ok {
				subwords = append(subwords, substr)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			subwords = append(subwords, "[UNK]")
			start++
		}
	}
	return subwords
}
