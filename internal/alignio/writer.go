package alignio

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Record is one translated sentence with its optional attention trace
// (token rows over source positions).
type Record struct {
	Source    string
	Target    string
	Score     float32
	Attention [][]float32
}

// Schema is the Arrow layout used for alignment exports and Flight
// pushes.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "target", Type: arrow.BinaryTypes.String},
	{Name: "score", Type: arrow.PrimitiveTypes.Float32},
	{Name: "attention", Type: arrow.ListOf(arrow.ListOf(arrow.PrimitiveTypes.Float32)), Nullable: true},
}, nil)

// NewRecord builds a single Arrow record batch from translation
// records. The caller must Release it.
func NewRecord(mem memory.Allocator, recs []Record) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	srcB := b.Field(0).(*array.StringBuilder)
	trgB := b.Field(1).(*array.StringBuilder)
	scoreB := b.Field(2).(*array.Float32Builder)
	attB := b.Field(3).(*array.ListBuilder)
	rowB := attB.ValueBuilder().(*array.ListBuilder)
	valB := rowB.ValueBuilder().(*array.Float32Builder)

	for _, r := range recs {
		srcB.Append(r.Source)
		trgB.Append(r.Target)
		scoreB.Append(r.Score)
		if r.Attention == nil {
			attB.AppendNull()
			continue
		}
		attB.Append(true)
		for _, row := range r.Attention {
			rowB.Append(true)
			valB.AppendValues(row, nil)
		}
	}
	return b.NewRecord()
}

// WriteFile writes translation records to an Arrow IPC file.
func WriteFile(path string, recs []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("alignment export: create %s: %w", path, err)
	}
	defer f.Close()

	mem := memory.NewGoAllocator()
	rec := NewRecord(mem, recs)
	defer rec.Release()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("alignment export: open writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("alignment export: write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("alignment export: close writer: %w", err)
	}
	return nil
}

// ReadFile loads translation record batches back from an Arrow IPC
// file. Attention traces are not reconstructed; this is for inspection
// and round-trip checks.
func ReadFile(path string) (sources, targets []string, scores []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("alignment export: open %s: %w", path, err)
	}
	defer f.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("alignment export: open reader: %w", err)
	}
	defer r.Close()

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("alignment export: record %d: %w", i, err)
		}
		srcCol := rec.Column(0).(*array.String)
		trgCol := rec.Column(1).(*array.String)
		scoreCol := rec.Column(2).(*array.Float32)
		for j := 0; j < int(rec.NumRows()); j++ {
			sources = append(sources, srcCol.Value(j))
			targets = append(targets, trgCol.Value(j))
			scores = append(scores, scoreCol.Value(j))
		}
	}
	return sources, targets, scores, nil
}
