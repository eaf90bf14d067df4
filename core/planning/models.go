package planning

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/user"
)

type (
	ClassGroup struct {
		ID  int64  `json:"id"`
		Nom string `json:"nom,omitempty"`
	}

	Etudiant struct {
		ID     int64  `json:"id"`
		Nom    string `json:"nom,omitempty"`
		Prenom string `json:"prenom,omitempty"`
		Email  string `json:"email,omitempty"`
		CNE    string `json:"cne,omitempty"`
	}

	// Planification is a defense session: one day, one supervisor, several slots.
	Planification struct {
		ID             int64       `json:"id"`
		DateSoutenance string      `json:"dateSoutenance"` // 2006-01-02
		Encadrant      *user.User  `json:"encadrant,omitempty"`
		ClassGroup     *ClassGroup `json:"classGroup,omitempty"`
		AnneeScolaire  string      `json:"anneeScolaire,omitempty"`
		Details        []Detail    `json:"details,omitempty"`
	}

	// Detail is one time-boxed slot of a Planification, free until bound to a student.
	Detail struct {
		ID         int64     `json:"id,omitempty"`
		Sujet      string    `json:"sujet"`
		HeureDebut string    `json:"heureDebut"` // 15:04[:05]
		HeureFin   string    `json:"heureFin"`
		Etudiant   *Etudiant `json:"etudiant,omitempty"`
	}

	// StudentSlot is a student's view of one of their slots.
	StudentSlot struct {
		PlanificationID int64  `json:"planificationId,omitempty"`
		DetailID        int64  `json:"detailId,omitempty"`
		Date            string `json:"date"` // 2006-01-02
		HeureDebut      string `json:"heureDebut"`
		HeureFin        string `json:"heureFin"`
		Sujet           string `json:"sujet"`
		Entreprise      string `json:"entreprise,omitempty"`
		Encadrant       string `json:"encadrant,omitempty"`
		Salle           string `json:"salle,omitempty"`
	}

	// File is an exported document, as served by the stages API or rendered locally.
	File struct {
		Name        string
		ContentType string
		Content     []byte
	}
)

func (e Etudiant) FullName() string {
	return strings.TrimSpace(e.Prenom + " " + e.Nom)
}

// NewPlanification contains information needed to create a new Planification.
type NewPlanification struct {
	DateSoutenance string `json:"dateSoutenance" form:"dateSoutenance" validate:"required,isodate"`
	EncadrantID    int64  `json:"encadrantId" form:"encadrantId" validate:"required,gt=0"`
	ClassGroupID   int64  `json:"classGroupId" form:"classGroupId" validate:"required,gt=0"`
	AnneeScolaire  string `json:"anneeScolaire,omitempty" form:"anneeScolaire"`
}

func (np *NewPlanification) Validate(validate *validator.Validate) error {
	np.DateSoutenance = core.CleanString(np.DateSoutenance)
	np.AnneeScolaire = core.CleanString(np.AnneeScolaire)
	return validate.Struct(np)
}

// NewDetail contains information needed to add a slot to a Planification.
type NewDetail struct {
	Sujet      string    `json:"sujet" validate:"required"`
	HeureDebut string    `json:"heureDebut" validate:"required,clock"`
	HeureFin   string    `json:"heureFin" validate:"required,clock"`
	Etudiant   *Etudiant `json:"etudiant,omitempty"`
}

func (nd *NewDetail) Validate(validate *validator.Validate) error {
	nd.Sujet = core.CleanString(nd.Sujet)
	nd.HeureDebut = core.CleanString(nd.HeureDebut)
	nd.HeureFin = core.CleanString(nd.HeureFin)
	if nd.Etudiant != nil && nd.Etudiant.ID == 0 {
		nd.Etudiant = nil // free slot
	}
	return validate.Struct(nd)
}

// UpdateDetail defines what information may be provided to modify an existing slot.
type UpdateDetail NewDetail

func (ud *UpdateDetail) Validate(validate *validator.Validate) error {
	return (*NewDetail)(ud).Validate(validate)
}

// Repository is the stages API: it owns every planification and slot.
type Repository interface {
	QueryAllPlanifications(ctx context.Context) ([]Planification, error)
	QueryPlanificationsByEncadrant(ctx context.Context, encadrantID int64) ([]Planification, error)
	QuerySlotsByEtudiant(ctx context.Context, etudiantID int64) ([]StudentSlot, error)
	QueryDetails(ctx context.Context, planifID int64) ([]Detail, error)
	CreatePlanification(ctx context.Context, np NewPlanification) (Planification, error)
	AddDetail(ctx context.Context, planifID int64, nd NewDetail) (Detail, error)
	UpdateDetail(ctx context.Context, detailID int64, ud UpdateDetail) (Detail, error)
	DeleteDetail(ctx context.Context, detailID int64) error
	ExportPlanificationsByEncadrant(ctx context.Context, encadrantID int64) (File, error)
	ExportPlanification(ctx context.Context, planifID int64) (File, error)
	QueryEtudiantsByClassGroup(ctx context.Context, classGroupID int64) ([]Etudiant, error)
}
