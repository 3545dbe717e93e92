package binding

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/google/uuid"
)

// State of a converter instance. Only Confirmed permits conversion.
type State string

const (
	StateEmpty     State = "empty"
	StateTyping    State = "typing"
	StateConfirmed State = "confirmed"
)

// ConverterIndex identifies which of the two converter instances an event
// belongs to. The same index is handed to the embedded coding widget.
type ConverterIndex int

const (
	ConverterNAMCToICD ConverterIndex = 0 // top: NAMC input, ICD output
	ConverterICDToNAMC ConverterIndex = 1 // bottom: ICD input, NAMC output
)

// ErrNotConfirmed rejects conversion attempts from a converter that has no
// explicitly selected candidate. The text is shown to the user as-is.
var ErrNotConfirmed = errors.New("select a suggestion from the list before converting")

var errUnknownConverter = errors.New("unknown converter index")

// ConverterState is one converter's selection state plus the suggestion
// generation counter used to discard stale autocomplete responses.
type ConverterState struct {
	State      State                 `json:"state"`
	Selected   *models.TermCandidate `json:"selected,omitempty"`
	Generation uint64                `json:"generation"`
}

// Session binds the two converter instances and the widget to one shared
// CombinedRecord for the lifetime of a page session.
type Session struct {
	ID         string                `json:"id"`
	Converters [2]ConverterState     `json:"converters"`
	Record     models.CombinedRecord `json:"record"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func NewSession() *Session {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.Converters[ConverterNAMCToICD] = ConverterState{State: StateEmpty}
	session.Converters[ConverterICDToNAMC] = ConverterState{State: StateEmpty}
	return session
}

func (s *Session) converter(index ConverterIndex) (*ConverterState, error) {
	if index != ConverterNAMCToICD && index != ConverterICDToNAMC {
		return nil, fmt.Errorf("%w: %d", errUnknownConverter, index)
	}
	return &s.Converters[index], nil
}

// ObserveInput records a keystroke burst. Any edit regresses a confirmed
// converter back to typing, and the returned generation tags the suggestion
// request so late responses from older bursts can be discarded.
func (s *Session) ObserveInput(index ConverterIndex, text string) (uint64, error) {
	converter, err := s.converter(index)
	if err != nil {
		return 0, err
	}
	converter.Generation++
	converter.Selected = nil
	if text == "" {
		converter.State = StateEmpty
	} else {
		converter.State = StateTyping
	}
	s.touch()
	return converter.Generation, nil
}

// AcceptSuggestions reports whether a suggestion response tagged with the
// given generation is still current.
func (s *Session) AcceptSuggestions(index ConverterIndex, generation uint64) (bool, error) {
	converter, err := s.converter(index)
	if err != nil {
		return false, err
	}
	return generation == converter.Generation, nil
}

// ConfirmTerm is the explicit click on a rendered candidate. It confirms the
// converter and writes the input-side half of the record: the top converter's
// input is a NAMC term, the bottom's an ICD term. The other half is left
// untouched.
func (s *Session) ConfirmTerm(index ConverterIndex, candidate models.TermCandidate) error {
	converter, err := s.converter(index)
	if err != nil {
		return err
	}
	selected := candidate
	converter.Selected = &selected
	converter.State = StateConfirmed
	switch index {
	case ConverterNAMCToICD:
		s.Record.NAMCCode = candidate.Code
	case ConverterICDToNAMC:
		s.Record.ICDCode = candidate.Code
	}
	s.touch()
	return nil
}

// EnsureConfirmed gates the resolver. Callers in any other state get
// ErrNotConfirmed rather than a silent no-op.
func (s *Session) EnsureConfirmed(index ConverterIndex) (models.TermCandidate, error) {
	converter, err := s.converter(index)
	if err != nil {
		return models.TermCandidate{}, err
	}
	if converter.State != StateConfirmed || converter.Selected == nil {
		return models.TermCandidate{}, ErrNotConfirmed
	}
	return *converter.Selected, nil
}

// SelectResult is the click on a rendered conversion result. It writes the
// output-side half of the record: an ICD code for the top converter, a NAMC
// code for the bottom one.
func (s *Session) SelectResult(index ConverterIndex, result models.ConversionResult) error {
	if _, err := s.converter(index); err != nil {
		return err
	}
	switch index {
	case ConverterNAMCToICD:
		s.Record.ICDCode = result.Code
	case ConverterICDToNAMC:
		s.Record.NAMCCode = result.Code
	}
	s.touch()
	return nil
}

// ApplyNLPSelection feeds a semantic-search card into the top converter as a
// confirmed NAMC selection. The card cannot recover the vernacular
// designation, so the candidate is degraded to an empty definition, and the
// ICD half is cleared: an NLP match carries no ICD evidence.
func (s *Session) ApplyNLPSelection(match models.NLPMatch) {
	candidate := models.TermCandidate{
		Code:    match.Code,
		Display: match.System + ": " + match.Display,
		System:  match.System,
	}
	converter := &s.Converters[ConverterNAMCToICD]
	converter.Selected = &candidate
	converter.State = StateConfirmed
	s.Record.NAMCCode = candidate.Code
	s.Record.ICDCode = ""
	s.touch()
}

// ApplyWidgetSelection is the embedded coding widget's callback: a manual
// ICD pick for whichever converter launched the widget.
func (s *Session) ApplyWidgetSelection(index ConverterIndex, code, title string) error {
	if _, err := s.converter(index); err != nil {
		return err
	}
	if code == "" {
		return fmt.Errorf("widget selection carried no code")
	}
	s.Record.ICDCode = code
	if index == ConverterICDToNAMC {
		candidate := models.TermCandidate{Code: code, Display: title}
		s.Converters[index].Selected = &candidate
		s.Converters[index].State = StateConfirmed
	}
	s.touch()
	return nil
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
