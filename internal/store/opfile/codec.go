package opfile

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/colonyops/muster/internal/core/operation"
)

// formatVersion is bumped when recordFile changes incompatibly.
const formatVersion = 2

// recordFile is the on-disk shape of an operation record.
type recordFile struct {
	Version   int        `msgpack:"v"`
	ID        string     `msgpack:"id"`
	Name      string     `msgpack:"name"`
	Live      bool       `msgpack:"live"`
	FileName  string     `msgpack:"file_name"`
	MessageID string     `msgpack:"message_id"`
	ChannelID string     `msgpack:"channel_id"`
	Date      *time.Time `msgpack:"date,omitempty"`
	Roles     []roleFile `msgpack:"roles"`
	Reserves  []string   `msgpack:"reserves"`
	Options   optsFile   `msgpack:"options"`
	Status    string     `msgpack:"status"`

	ManagedBy     string   `msgpack:"managed_by"`
	TargetChannel string   `msgpack:"target_channel"`
	Description   string   `msgpack:"description"`
	CustomMessage string   `msgpack:"custom_message"`
	Arguments     []string `msgpack:"arguments"`
	Pingables     []string `msgpack:"pingables"`

	CreatedAt *time.Time `msgpack:"created_at,omitempty"`
	UpdatedAt *time.Time `msgpack:"updated_at,omitempty"`
}

type roleFile struct {
	Name    string   `msgpack:"name"`
	Icon    string   `msgpack:"icon"`
	Max     int      `msgpack:"max"`
	Players []string `msgpack:"players"`
}

type optsFile struct {
	UseReserve          bool `msgpack:"reserve"`
	UseCompact          bool `msgpack:"compact"`
	AutoStart           bool `msgpack:"autostart"`
	UseExternalFeedback bool `msgpack:"external_feedback"`
	IsGameEvent         bool `msgpack:"game_event"`
}

func encode(rec *operation.Record) ([]byte, error) {
	f := recordFile{
		Version:       formatVersion,
		ID:            rec.ID,
		Name:          rec.Name,
		Live:          rec.Identity.IsLive(),
		FileName:      rec.Identity.FileName(),
		MessageID:     rec.MessageID,
		ChannelID:     rec.ChannelID,
		Date:          timestamp(rec.Date),
		Reserves:      rec.Reserves,
		Options:       optsFile(rec.Options),
		Status:        rec.Status.String(),
		ManagedBy:     rec.ManagedBy,
		TargetChannel: rec.TargetChannel,
		Description:   rec.Description,
		CustomMessage: rec.CustomMessage,
		Arguments:     rec.Arguments,
		Pingables:     rec.Pingables,
		CreatedAt:     timestamp(rec.CreatedAt),
		UpdatedAt:     timestamp(rec.UpdatedAt),
	}
	for _, r := range rec.Roles {
		f.Roles = append(f.Roles, roleFile{Name: r.Name, Icon: r.Icon, Max: r.MaxPositions, Players: r.Players})
	}

	return msgpack.Marshal(&f)
}

func decode(data []byte) (*operation.Record, error) {
	var f recordFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", f.Version)
	}

	status, err := operation.ParseStatus(f.Status)
	if err != nil {
		return nil, err
	}

	identity := operation.Template()
	if f.Live {
		if f.FileName == "" {
			return nil, fmt.Errorf("live record %q has no file name", f.Name)
		}
		identity = operation.Live(f.FileName)
	}

	rec := &operation.Record{
		ID:            f.ID,
		Name:          f.Name,
		Identity:      identity,
		MessageID:     f.MessageID,
		ChannelID:     f.ChannelID,
		Date:          fromTimestamp(f.Date),
		Reserves:      f.Reserves,
		Options:       operation.Options(f.Options),
		Status:        status,
		ManagedBy:     f.ManagedBy,
		TargetChannel: f.TargetChannel,
		Description:   f.Description,
		CustomMessage: f.CustomMessage,
		Arguments:     f.Arguments,
		Pingables:     f.Pingables,
		CreatedAt:     fromTimestamp(f.CreatedAt),
		UpdatedAt:     fromTimestamp(f.UpdatedAt),
	}
	for _, r := range f.Roles {
		rec.Roles = append(rec.Roles, operation.Role{Name: r.Name, Icon: r.Icon, MaxPositions: r.Max, Players: r.Players})
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// timestamp leaves the zero time unset so that it stays distinct from the
// Unix epoch. Set values use the msgpack timestamp extension, which covers
// any instant time.Time can hold.
func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromTimestamp(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
