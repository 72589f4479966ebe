// Package console runs the interactive recommendation session used for
// manual testing against a local knowledge file.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fusionguard/recommender/internal/recommend"
)

const (
	rule       = "====================================================="
	quitInput  = "QUIT"
	noResults  = "No rules matched. No recommendations at this time."
	resultHead = "[RECOMMENDATION RESULTS]"
)

type Recommender interface {
	Infer(req recommend.Request) recommend.Result
	Engine() *recommend.Engine
}

type Session struct {
	recommender Recommender
	in          *bufio.Scanner
	out         io.Writer
}

func New(recommender Recommender, in io.Reader, out io.Writer) *Session {
	return &Session{
		recommender: recommender,
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

// Run loops until the user types quit or input ends.
func (s *Session) Run() error {
	s.banner()

	for {
		itemID, ok := s.prompt("\nEnter the Product ID you are viewing (e.g., P101, P501), or type 'quit': ")
		if !ok {
			break
		}
		itemID = recommend.NormalizeItemID(itemID)
		if itemID == quitInput {
			break
		}
		if !s.known(itemID) {
			s.printf("Error: Product ID '%s' not recognized. Please try again.\n", itemID)
			continue
		}

		rawCart, ok := s.prompt("Enter your current Cart Value (e.g., 55.00): $")
		if !ok {
			break
		}
		cart, err := strconv.ParseFloat(strings.TrimSpace(rawCart), 64)
		if err != nil {
			s.printf("Error: Invalid cart value. Using $0.00.\n")
			cart = 0
		}

		rawDays, ok := s.prompt("Days since your last purchase (e.g., 120): ")
		if !ok {
			break
		}
		days, err := strconv.Atoi(strings.TrimSpace(rawDays))
		if err != nil {
			s.printf("Error: Invalid days inactive. Using 0.\n")
			days = 0
		}

		res := s.recommender.Infer(recommend.Request{
			CurrentItemID: itemID,
			CartValue:     cart,
			History:       &recommend.History{LastPurchaseDays: float64(days)},
		})
		s.results(res)
	}

	return s.in.Err()
}

func (s *Session) banner() {
	s.printf("%s\n BASIC RULE-BASED E-COMMERCE AI SYSTEM\n%s\n", rule, rule)
	s.printf("Available Products for testing:\n")
	if e := s.recommender.Engine(); e != nil {
		for _, p := range e.Catalog().Products() {
			s.printf("- %s: %s (Cat: %s)\n", p.ID, p.Name, p.Category)
		}
	}
	s.printf("%s\n", rule)
}

func (s *Session) results(res recommend.Result) {
	s.printf("\n%s\n", resultHead)
	lines := res.Lines()
	if len(lines) == 0 {
		s.printf("%s\n", noResults)
	}
	for _, line := range lines {
		s.printf("-> %s\n", line)
	}
	s.printf("\n%s\n", rule)
}

func (s *Session) known(id string) bool {
	e := s.recommender.Engine()
	if e == nil {
		return false
	}
	_, ok := e.Catalog().Resolve(id)
	return ok
}

func (s *Session) prompt(text string) (string, bool) {
	s.printf("%s", text)
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}
