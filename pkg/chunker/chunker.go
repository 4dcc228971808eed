package chunker

import (
	"context"
	"fmt"
	"io"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/jotfs/fastcdc-go"
)

// Chunk is one content-defined slice of a file. Data is only valid for the
// duration of the callback that receives it.
type Chunk struct {
	Offset uint64
	Data   []byte
}

// Config defines the chunking parameters.
type Config struct {
	Min int
	Avg int
	Max int
}

// Chunker splits a reader into content-defined chunks.
type Chunker interface {
	// Walk calls fn for each chunk of r in order and stops at the first error.
	Walk(ctx context.Context, r io.Reader, fn func(Chunk) error) error
}

type fastCDCChunker struct {
	opts fastcdc.Options
}

// NewChunker returns a FastCDC chunker. Avg should be a power of two between
// Min and Max.
func NewChunker(cfg Config) Chunker {
	return &fastCDCChunker{
		opts: fastcdc.Options{
			MinSize:     cfg.Min,
			AverageSize: cfg.Avg,
			MaxSize:     cfg.Max,
		},
	}
}

func (c *fastCDCChunker) Walk(ctx context.Context, r io.Reader, fn func(Chunk) error) error {
	cdc, err := fastcdc.NewChunker(r, c.opts)
	if err != nil {
		return fmt.Errorf("%w: chunker options: %v", core.ErrInvalidInput, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := cdc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(Chunk{Offset: uint64(chunk.Offset), Data: chunk.Data}); err != nil {
			return err
		}
	}
}
