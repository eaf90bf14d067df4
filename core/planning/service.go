package planning

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
)

const (
	msgMissingPlanifFields = "Veuillez renseigner la date, l'encadrant et la classe."
	msgMissingSlotFields   = "Veuillez remplir tous les champs du créneau."
)

// ConvocationRenderer renders the document attached to a slot's convocation.
type ConvocationRenderer func(planif Planification, detail Detail, generatedAt time.Time) (File, error)

// Service runs every planification operation against the stages API and reports each outcome as a toast
// to the recipient carried by the context.
type Service struct {
	repo              Repository
	notifier          notification.Notifier
	mailSvc           core.EmailService
	renderConvocation ConvocationRenderer
	validate          *validator.Validate
	logger            core.Logger
	frontendBaseURL   string
}

func NewService(
	repo Repository,
	notifier notification.Notifier,
	mailSvc core.EmailService,
	renderConvocation ConvocationRenderer,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:              repo,
		notifier:          notifier,
		mailSvc:           mailSvc,
		renderConvocation: renderConvocation,
		validate:          validate,
		logger:            logger,
		frontendBaseURL:   conf.FrontendBaseURL,
	}
}

// QueryAll returns every planification (admin).
func (svc *Service) QueryAll(ctx context.Context) ([]Planification, error) {
	id := svc.notifier.Loading(ctx, "Chargement des planifications...", "Récupération de toutes les planifications")
	planifs, err := svc.repo.QueryAllPlanifications(ctx)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Planifications", "Impossible de charger les planifications")
		return nil, errors.Wrap(err, "querying planifications")
	}
	svc.notifier.OperationSuccess(ctx, id, "Planifications", fmt.Sprintf("%d planification(s) chargée(s)", len(planifs)))
	return nonNil(planifs), nil
}

// QueryByEncadrant returns the planifications assigned to a supervisor.
func (svc *Service) QueryByEncadrant(ctx context.Context, encadrantID int64) ([]Planification, error) {
	id := svc.notifier.Loading(ctx, "Chargement de vos planifications...", "Récupération des planifications assignées")
	planifs, err := svc.repo.QueryPlanificationsByEncadrant(ctx, encadrantID)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Mes planifications", "Impossible de charger vos planifications")
		return nil, errors.Wrap(err, "querying planifications by encadrant")
	}
	svc.notifier.OperationSuccess(ctx, id, "Mes planifications", fmt.Sprintf("%d planification(s) trouvée(s)", len(planifs)))
	return nonNil(planifs), nil
}

// QueryByEtudiant returns a student's slots.
func (svc *Service) QueryByEtudiant(ctx context.Context, etudiantID int64) ([]StudentSlot, error) {
	id := svc.notifier.Loading(ctx, "Chargement de vos créneaux...", "Récupération de vos soutenances programmées")
	slots, err := svc.repo.QuerySlotsByEtudiant(ctx, etudiantID)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Mes soutenances", "Impossible de charger vos créneaux")
		return nil, errors.Wrap(err, "querying slots by etudiant")
	}
	svc.notifier.OperationSuccess(ctx, id, "Mes soutenances", fmt.Sprintf("%d créneau(x) programmé(s)", len(slots)))
	if slots == nil {
		slots = []StudentSlot{}
	}
	return slots, nil
}

// QueryDetails returns the slots of a planification.
func (svc *Service) QueryDetails(ctx context.Context, planifID int64) ([]Detail, error) {
	id := svc.notifier.Loading(ctx, "Chargement des créneaux...", "Récupération des détails de planification")
	details, err := svc.repo.QueryDetails(ctx, planifID)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Créneaux", "Impossible de charger les créneaux")
		return nil, errors.Wrap(err, "querying details")
	}
	svc.notifier.OperationSuccess(ctx, id, "Créneaux", fmt.Sprintf("%d créneau(x) trouvé(s)", len(details)))
	if details == nil {
		details = []Detail{}
	}
	return details, nil
}

// Create schedules a new planification (admin).
func (svc *Service) Create(ctx context.Context, np NewPlanification) (Planification, error) {
	if err := np.Validate(svc.validate); err != nil {
		svc.notifier.Error(ctx, "Erreur", msgMissingPlanifFields)
		return Planification{}, validationError(err, msgMissingPlanifFields)
	}

	id := svc.notifier.Loading(ctx, "Création de la planification...", "Enregistrement de la nouvelle planification")
	planif, err := svc.repo.CreatePlanification(ctx, np)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Création planification", "Impossible de créer la planification")
		return Planification{}, errors.Wrap(err, "creating planification")
	}
	svc.notifier.OperationSuccess(ctx, id, "Planification créée",
		fmt.Sprintf("Planification du %s créée avec succès", planif.DateSoutenance))
	return planif, nil
}

// AddDetail adds a slot to a planification. A student bound to the slot is sent a convocation.
func (svc *Service) AddDetail(ctx context.Context, planif Planification, nd NewDetail) (Detail, error) {
	if err := nd.Validate(svc.validate); err != nil {
		svc.notifier.Error(ctx, "Erreur", msgMissingSlotFields)
		return Detail{}, validationError(err, msgMissingSlotFields)
	}

	id := svc.notifier.Loading(ctx, "Ajout du créneau...", "Enregistrement du nouveau créneau de soutenance")
	detail, err := svc.repo.AddDetail(ctx, planif.ID, nd)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Ajout créneau", "Impossible d'ajouter le créneau")
		return Detail{}, errors.Wrap(err, "adding detail")
	}
	svc.notifier.OperationSuccess(ctx, id, "Créneau ajouté",
		fmt.Sprintf("Nouveau créneau créé: %s - %s", FormatTime(detail.HeureDebut), FormatTime(detail.HeureFin)))
	svc.sendConvocation(planif, detail)
	return detail, nil
}

// UpdateDetail modifies a slot of a planification. A student bound to the slot is sent a convocation.
func (svc *Service) UpdateDetail(ctx context.Context, planif Planification, detailID int64, ud UpdateDetail) (Detail, error) {
	if err := ud.Validate(svc.validate); err != nil {
		svc.notifier.Error(ctx, "Erreur", msgMissingSlotFields)
		return Detail{}, validationError(err, msgMissingSlotFields)
	}

	id := svc.notifier.Loading(ctx, "Mise à jour du créneau...", "Sauvegarde des modifications")
	detail, err := svc.repo.UpdateDetail(ctx, detailID, ud)
	if err != nil {
		svc.notifier.OperationError(ctx, id, "Mise à jour", "Impossible de mettre à jour le créneau")
		return Detail{}, errors.Wrap(err, "updating detail")
	}
	svc.notifier.OperationSuccess(ctx, id, "Créneau mis à jour",
		fmt.Sprintf("Créneau modifié: %s - %s", FormatTime(detail.HeureDebut), FormatTime(detail.HeureFin)))
	svc.sendConvocation(planif, detail)
	return detail, nil
}

// DeleteDetail removes a slot.
func (svc *Service) DeleteDetail(ctx context.Context, detailID int64) error {
	if err := svc.repo.DeleteDetail(ctx, detailID); err != nil {
		svc.notifier.Error(ctx, "Erreur", "Impossible de supprimer le créneau.")
		return errors.Wrap(err, "deleting detail")
	}
	svc.notifier.Success(ctx, "Supprimé", "Le créneau a été supprimé.")
	return nil
}

// ExportByEncadrant downloads the supervisor's planifications as a spreadsheet.
func (svc *Service) ExportByEncadrant(ctx context.Context, encadrantID int64) (File, error) {
	svc.notifier.Info(ctx, "Export", "Téléchargement du fichier en cours...")
	f, err := svc.repo.ExportPlanificationsByEncadrant(ctx, encadrantID)
	if err != nil {
		svc.notifier.Error(ctx, "Export", "Impossible d'exporter les planifications")
		return File{}, errors.Wrap(err, "exporting planifications by encadrant")
	}
	if f.Name == "" {
		f.Name = fmt.Sprintf("planifications_encadrant_%d.xlsx", encadrantID)
	}
	return f, nil
}

// ExportPlanification downloads the slots of one planification as a spreadsheet.
func (svc *Service) ExportPlanification(ctx context.Context, planifID int64) (File, error) {
	if planifID <= 0 {
		svc.notifier.Error(ctx, "Erreur", "Planification invalide.")
		return File{}, core.NewValidationError(errors.New("invalid planification"))
	}
	svc.notifier.Info(ctx, "Export", "Téléchargement du fichier en cours...")
	f, err := svc.repo.ExportPlanification(ctx, planifID)
	if err != nil {
		svc.notifier.Error(ctx, "Export", "Impossible d'exporter la planification")
		return File{}, errors.Wrap(err, "exporting planification")
	}
	if f.Name == "" {
		f.Name = fmt.Sprintf("planification_%d.xlsx", planifID)
	}
	return f, nil
}

// QueryStudentsByClassGroup returns the students a slot can be assigned to.
func (svc *Service) QueryStudentsByClassGroup(ctx context.Context, classGroupID int64) ([]Etudiant, error) {
	students, err := svc.repo.QueryEtudiantsByClassGroup(ctx, classGroupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying etudiants by class group")
	}
	if students == nil {
		students = []Etudiant{}
	}
	return students, nil
}

// FindForEncadrant returns one of the supervisor's planifications, without notifying.
// core.ErrNotFound is returned when the planification is not assigned to the supervisor.
func (svc *Service) FindForEncadrant(ctx context.Context, encadrantID, planifID int64) (Planification, error) {
	planifs, err := svc.repo.QueryPlanificationsByEncadrant(ctx, encadrantID)
	if err != nil {
		return Planification{}, errors.Wrap(err, "querying planifications by encadrant")
	}
	planif, ok := FindPlanification(planifs, planifID)
	if !ok {
		return Planification{}, core.ErrNotFound
	}
	return planif, nil
}

// FindDetails returns the slots of a planification, without notifying.
func (svc *Service) FindDetails(ctx context.Context, planifID int64) ([]Detail, error) {
	details, err := svc.repo.QueryDetails(ctx, planifID)
	if err != nil {
		return nil, errors.Wrap(err, "querying details")
	}
	if details == nil {
		details = []Detail{}
	}
	return details, nil
}

// StudentsForEncadrant returns the students of a class group the supervisor has a planification with.
// core.ErrNotFound is returned for any other class group.
func (svc *Service) StudentsForEncadrant(ctx context.Context, encadrantID, classGroupID int64) ([]Etudiant, error) {
	planifs, err := svc.repo.QueryPlanificationsByEncadrant(ctx, encadrantID)
	if err != nil {
		return nil, errors.Wrap(err, "querying planifications by encadrant")
	}
	for _, p := range planifs {
		if p.ClassGroup != nil && p.ClassGroup.ID == classGroupID {
			return svc.QueryStudentsByClassGroup(ctx, classGroupID)
		}
	}
	return nil, core.ErrNotFound
}

type convocationData struct {
	Sujet      string
	Date       string
	HeureDebut string
	HeureFin   string
}

func (svc *Service) sendConvocation(planif Planification, detail Detail) {
	if svc.mailSvc == nil || detail.Etudiant == nil || detail.Etudiant.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: detail.Etudiant.FullName(), Address: detail.Etudiant.Email}},
		Subject:      "Convocation à votre soutenance de stage",
		TemplateName: "convocation",
		TemplateData: convocationData{
			Sujet:      detail.Sujet,
			Date:       FormatDate(planif.DateSoutenance),
			HeureDebut: FormatTime(detail.HeureDebut),
			HeureFin:   FormatTime(detail.HeureFin),
		},
	}
	if enc := planif.Encadrant; enc != nil && enc.Email != "" {
		msg.Cc = []mail.Address{{Name: enc.FullName(), Address: enc.Email}}
	}
	msg.SetFrontendBaseURL(svc.frontendBaseURL)

	// the convocation still goes out without its pdf
	if svc.renderConvocation != nil {
		if err := svc.attachConvocation(msg, planif, detail); err != nil && svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("attaching convocation: %v", err), err)
		}
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) attachConvocation(msg *core.EmailMessage, planif Planification, detail Detail) error {
	f, err := svc.renderConvocation(planif, detail, NowFunc())
	if err != nil {
		return errors.Wrap(err, "rendering convocation")
	}
	return msg.Attach(bytes.NewReader(f.Content), f.Name, f.ContentType)
}

// validationError reports every invalid field with the form-level message.
func validationError(err error, msg string) error {
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		flds := make([]core.FieldError, 0, len(vErrs))
		for _, vErr := range vErrs {
			flds = append(flds, core.FieldError{Field: vErr.Field(), Error: msg})
		}
		return core.NewValidationError(errors.New(msg), flds...)
	}
	return err
}

func nonNil(planifs []Planification) []Planification {
	if planifs == nil {
		return []Planification{}
	}
	return planifs
}
