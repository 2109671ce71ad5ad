package bootstrap

import (
	"github.com/wolfman30/apptreply/internal/appointments"
	appconfig "github.com/wolfman30/apptreply/internal/config"
	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

// BuildEngine assembles the dialogue engine from config and its collaborators.
// responder may be nil.
func BuildEngine(cfg *appconfig.Config, store *appointments.Store, turns dialogue.TurnLog, resp dialogue.Responder, m *metrics.DialogueMetrics, logger *logging.Logger) *dialogue.Engine {
	deps := dialogue.Deps{
		Store:     store,
		Slots:     store,
		Turns:     turns,
		Responder: resp,
		Location:  cfg.Location(),
		Metrics:   m,
		Logger:    logger,
	}
	return dialogue.NewEngine(deps,
		dialogue.WithStoreTimeout(cfg.StoreTimeout),
		dialogue.WithResponderTimeout(cfg.ResponderTimeout),
		dialogue.WithHistoryWindow(cfg.HistoryWindow),
		dialogue.WithMaxReplyRunes(cfg.ResponderMaxRunes),
		dialogue.WithDefaultLocale(dialogue.ParseLocale(cfg.DefaultLocale)),
	)
}
