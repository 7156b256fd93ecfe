package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/repository"
)

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Tx            repository.TxManager
	Labs          repository.LabRepository
	Clinics       repository.ClinicRepository
	Links         repository.LinkRepository
	Invites       repository.InviteRepository
	Catalog       repository.CatalogRepository
	PriceTables   repository.PriceTableRepository
	Jobs          repository.JobRepository
	Attachments   repository.AttachmentRepository
	Messages      repository.MessageRepository
	Notifications repository.NotificationRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Tx:            NewTxManager(db),
		Labs:          NewLabRepository(db),
		Clinics:       NewClinicRepository(db),
		Links:         NewLinkRepository(db),
		Invites:       NewInviteRepository(db),
		Catalog:       NewCatalogRepository(db),
		PriceTables:   NewPriceTableRepository(db),
		Jobs:          NewJobRepository(db),
		Attachments:   NewAttachmentRepository(db),
		Messages:      NewMessageRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}
