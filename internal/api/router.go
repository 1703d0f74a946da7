package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/api/handlers"
	apimiddleware "github.com/campaignify/xenocrm/internal/api/middleware"
	"github.com/campaignify/xenocrm/internal/service"
)

// Services bundles everything the router needs. Translator may be nil when
// no AI endpoint is configured.
type Services struct {
	Customers  *service.CustomerService
	Orders     *service.OrderService
	Segments   *service.SegmentService
	Campaigns  *service.CampaignService
	Messages   *service.MessageService
	Translator handlers.RuleTranslator
}

// NewRouter builds the HTTP router for the crm-service.
func NewRouter(svcs Services, log *logrus.Entry) http.Handler {
	r := chi.NewRouter()
	r.Use(apimiddleware.Logger(log))

	customerHandler := handlers.NewCustomerHandler(svcs.Customers, log)
	orderHandler := handlers.NewOrderHandler(svcs.Orders, log)
	segmentHandler := handlers.NewSegmentHandler(svcs.Segments, log)
	campaignHandler := handlers.NewCampaignHandler(svcs.Campaigns, svcs.Messages, log)
	aiHandler := handlers.NewAIHandler(svcs.Translator, log)

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", customerHandler.Upsert)
		r.Get("/", customerHandler.List)
		r.Get("/{id}", customerHandler.Get)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", orderHandler.Create)
		r.Get("/", orderHandler.ListByCustomer)
	})

	r.Route("/segments", func(r chi.Router) {
		r.Post("/", segmentHandler.Create)
		r.Get("/", segmentHandler.List)
		r.Get("/{id}", segmentHandler.Get)
		r.Delete("/{id}", segmentHandler.Delete)
		r.Get("/{id}/audience", segmentHandler.Audience)
		r.Get("/{id}/count", segmentHandler.Count)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaignHandler.Create)
		r.Get("/", campaignHandler.List)
		r.Get("/{id}", campaignHandler.Get)
		r.Post("/{id}/schedule", campaignHandler.Schedule)
		r.Post("/{id}/execute", campaignHandler.Execute)
		r.Get("/{id}/stats", campaignHandler.Stats)
		r.Get("/{id}/messages", campaignHandler.Messages)
	})

	r.Post("/ai/natural-language-to-rules", aiHandler.TranslateRules)

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
