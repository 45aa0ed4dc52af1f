package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vetdesk/vetbook/internal/directory"
)

type directoryHandlers struct {
	directory *directory.PgRepository
}

type ProviderResponse struct {
	ID        string  `json:"id"`
	ClinicID  string  `json:"clinic_id"`
	Name      string  `json:"name"`
	Specialty *string `json:"specialty,omitempty"`
}

type PetResponse struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Species string `json:"species"`
}

// listProviders enumerates the bookable providers a caller picks from
// before starting a wizard session.
func (h *directoryHandlers) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.directory.ListProviders(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, ProviderResponse{
			ID:        p.ID.String(),
			ClinicID:  p.ClinicID.String(),
			Name:      p.Name,
			Specialty: p.Specialty,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// listPets backs the wizard's pet picker.
func (h *directoryHandlers) listPets(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseUUIDParam(w, chi.URLParam(r, "ownerID"), "owner_id")
	if !ok {
		return
	}

	if _, err := h.directory.GetOwner(r.Context(), ownerID); err != nil {
		handleDomainError(w, err)
		return
	}

	pets, err := h.directory.ListPetsByOwner(r.Context(), ownerID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]PetResponse, 0, len(pets))
	for _, p := range pets {
		resp = append(resp, PetResponse{
			ID:      p.ID.String(),
			OwnerID: p.OwnerID.String(),
			Name:    p.Name,
			Species: p.Species,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
