package cli

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"go.hackfix.me/sqlmgr/xtime"
)

// DurationValue is a duration flag that records whether it was set. It
// accepts the units supported by xtime.ParseDuration.
type DurationValue struct {
	sql.Null[time.Duration]
}

var _ kong.MapperValue = (*DurationValue)(nil)

// Decode implements the kong.MapperValue interface.
func (dv *DurationValue) Decode(kctx *kong.DecodeContext) error {
	var value string
	if err := kctx.Scan.PopValueInto("duration", &value); err != nil {
		return err //nolint:wrapcheck // Wrapped by Kong.
	}

	dur, err := xtime.ParseDuration(value)
	if err != nil {
		return err //nolint:wrapcheck // Wrapped by Kong.
	}
	if dur < 0 {
		return fmt.Errorf("duration must not be negative: %s", value)
	}

	dv.V, dv.Valid = dur, true

	return nil
}
