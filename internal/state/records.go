package state

import (
	"github.com/rs/zerolog/log"

	"github.com/optionvault/ove/internal/types"
)

// Recorder persists lifecycle telemetry to the database. All writes are
// fire-and-forget: a failed insert is logged and dropped, never surfaced to
// the execution path.
type Recorder struct{}

// NewRecorder returns a database-backed recorder. InitDB and EnsureSchema
// must have succeeded first.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordStage saves one stage transition.
func (r *Recorder) RecordStage(vaultName, stage, instrument string) {
	if DB == nil {
		return
	}
	_, err := DB.Exec(
		`INSERT INTO stage_transitions (vault_name, stage, instrument_name) VALUES ($1, $2, $3)`,
		vaultName, stage, instrument,
	)
	if err != nil {
		log.Warn().Err(err).Str("stage", stage).Msg("Failed to record stage transition")
	}
}

// RecordOrder saves one acknowledged order submission.
func (r *Recorder) RecordOrder(vaultName string, params *types.OrderParams, resp *types.OrderResponse) {
	if DB == nil || params == nil || resp == nil {
		return
	}
	_, err := DB.Exec(
		`INSERT INTO order_submissions
			(vault_name, order_id, instrument_name, label, direction, limit_price, amount, max_fee, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vaultName,
		resp.OrderID,
		params.InstrumentName,
		params.Label,
		string(params.Direction),
		params.LimitPrice.String(),
		params.Amount.String(),
		params.MaxFee.String(),
		params.Nonce,
	)
	if err != nil {
		log.Warn().Err(err).Str("orderId", resp.OrderID).Msg("Failed to record order submission")
	}
}
