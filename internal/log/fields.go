// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldAssetID  = "asset_id"
	FieldTrackID  = "track_id"
	FieldSectorID = "sector_id"
	FieldPlayerID = "player_id"
	FieldRootID   = "root_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Timeline fields
	FieldCanonicalTime = "canonical_time"
	FieldLocalTime     = "local_time"
	FieldDrift         = "drift"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
