package alignio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-bodkin/internal/logger"
)

// DefaultFlightPort is the conventional data port of the alignment
// store.
const DefaultFlightPort = 3000

// FlightPusher streams translation records to an Arrow Flight endpoint
// so alignment matrices land in the same store as other vector data.
type FlightPusher struct {
	addr    string
	client  flight.Client
	timeout time.Duration
}

// NewFlightPusher prepares a pusher for the given host/port. Connect
// must be called before Push.
func NewFlightPusher(host string, port int) *FlightPusher {
	if port <= 0 {
		port = DefaultFlightPort
	}
	return &FlightPusher{
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: 30 * time.Second,
	}
}

// Connect dials the Flight server.
func (p *FlightPusher) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddleware(p.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("flight: connect %s: %w", p.addr, err)
	}
	p.client = client
	return nil
}

// Close disconnects from the Flight server.
func (p *FlightPusher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Push sends translation records as a single DoPut stream under the
// "alignments" path.
func (p *FlightPusher) Push(ctx context.Context, recs []Record) error {
	if p.client == nil {
		return fmt.Errorf("flight: not connected, call Connect() first")
	}
	if len(recs) == 0 {
		return fmt.Errorf("flight: no records to push")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stream, err := p.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("flight: open DoPut stream: %w", err)
	}

	mem := memory.NewGoAllocator()
	rec := NewRecord(mem, recs)
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{"alignments"},
	})
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("flight: write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("flight: close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("flight: close stream: %w", err)
	}

	// drain server acks
	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("flight: server response: %w", err)
		}
	}

	logger.Log.Info("alignments pushed", "records", len(recs), "addr", p.addr)
	return nil
}
