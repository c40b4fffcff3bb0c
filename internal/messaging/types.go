package messaging

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SolveEvent reports a completed solve
type SolveEvent struct {
	EventID       string    `json:"event_id"`
	Endpoint      string    `json:"endpoint"`
	WebsiteID     string    `json:"website_id"`
	Nonce         int64     `json:"nonce"`
	Threads       int       `json:"threads"`
	Multithreaded bool      `json:"multithreaded"`
	Attempts      uint64    `json:"attempts"`
	HashRate      uint64    `json:"hash_rate"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	SolvedAt      time.Time `json:"solved_at"`
}

// TokenEvent reports a token obtained for an endpoint
type TokenEvent struct {
	EventID   string    `json:"event_id"`
	Endpoint  string    `json:"endpoint"`
	WebsiteID string    `json:"website_id"`
	ValidFor  int64     `json:"valid_for"`
	Cached    bool      `json:"cached"`
	IssuedAt  time.Time `json:"issued_at"`
}

// NewEventID returns a random event identifier
func NewEventID() string {
	return uuid.NewString()
}

// Proto converts the event into a protobuf Struct for the wire. Numbers that
// may exceed 2^53 are carried as decimal strings.
func (e *SolveEvent) Proto() (*structpb.Struct, error) {
	ts := timestamppb.New(e.SolvedAt)
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid solve time: %w", err)
	}

	return structpb.NewStruct(map[string]any{
		"event_id":      e.EventID,
		"endpoint":      e.Endpoint,
		"website_id":    e.WebsiteID,
		"nonce":         strconv.FormatInt(e.Nonce, 10),
		"threads":       e.Threads,
		"multithreaded": e.Multithreaded,
		"attempts":      strconv.FormatUint(e.Attempts, 10),
		"hash_rate":     strconv.FormatUint(e.HashRate, 10),
		"elapsed_ms":    e.ElapsedMs,
		"solved_at":     ts.AsTime().Format(time.RFC3339Nano),
	})
}

// SolveEventFromProto is the inverse of SolveEvent.Proto
func SolveEventFromProto(s *structpb.Struct) (*SolveEvent, error) {
	f := s.GetFields()
	e := &SolveEvent{
		EventID:       f["event_id"].GetStringValue(),
		Endpoint:      f["endpoint"].GetStringValue(),
		WebsiteID:     f["website_id"].GetStringValue(),
		Threads:       int(f["threads"].GetNumberValue()),
		Multithreaded: f["multithreaded"].GetBoolValue(),
		ElapsedMs:     int64(f["elapsed_ms"].GetNumberValue()),
	}

	var err error
	if e.Nonce, err = strconv.ParseInt(f["nonce"].GetStringValue(), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	if e.Attempts, err = strconv.ParseUint(f["attempts"].GetStringValue(), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid attempts: %w", err)
	}
	if e.HashRate, err = strconv.ParseUint(f["hash_rate"].GetStringValue(), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid hash rate: %w", err)
	}

	if e.SolvedAt, err = time.Parse(time.RFC3339Nano, f["solved_at"].GetStringValue()); err != nil {
		return nil, fmt.Errorf("invalid solve time: %w", err)
	}

	return e, nil
}
