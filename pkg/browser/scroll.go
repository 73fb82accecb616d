package browser

import "fmt"

// ScrollTo scrolls the page to a fraction of its full height, where 0
// is the top and 1 is the bottom. Fractions outside that range are
// clamped.
func (s *Session) ScrollTo(fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	code := fmt.Sprintf(
		"window.scrollTo({top: document.body.scrollHeight * %.3f, behavior: 'smooth'})",
		fraction,
	)
	_, err := s.Evaluate(code)
	return err
}

// ScrollToBottom scrolls the page to its full height.
func (s *Session) ScrollToBottom() error {
	return s.ScrollTo(1)
}
