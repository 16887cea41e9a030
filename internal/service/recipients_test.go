package service

import (
	"errors"
	"testing"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/sheet"
)

func TestChooseColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		columns      []string
		wantContact  int
		wantMessage  int
		wantFallback bool
	}{
		{name: "contact and message", columns: []string{"Contact", "Message"}, wantContact: 0, wantMessage: 1},
		{name: "case and space insensitive", columns: []string{"Name", " CONTACT ", "message"}, wantContact: 1, wantMessage: 2},
		{name: "phone header", columns: []string{"Phone", "Msg"}, wantContact: 0, wantMessage: -1, wantFallback: true},
		{name: "single number column", columns: []string{"Number"}, wantContact: 0, wantMessage: -1, wantFallback: true},
		{name: "phone after name", columns: []string{"Name", "Phone", "Message"}, wantContact: 1, wantMessage: 2, wantFallback: true},
		{name: "whatsapp header", columns: []string{"Message", "WhatsApp No"}, wantContact: 1, wantMessage: 0, wantFallback: true},
		{name: "second column", columns: []string{"A", "B"}, wantContact: 1, wantMessage: -1, wantFallback: true},
		{name: "second column is message", columns: []string{"A", "Message"}, wantContact: 0, wantMessage: 1, wantFallback: true},
		{name: "single unnamed column", columns: []string{"A"}, wantContact: 0, wantMessage: -1, wantFallback: true},
		{name: "telephone header", columns: []string{"Telephone", "Name", "Notes"}, wantContact: 0, wantMessage: -1, wantFallback: true},
		{name: "hint inside a word is ignored", columns: []string{"Hotel", "Guest", "Message"}, wantContact: 1, wantMessage: 2, wantFallback: true},
		{name: "hint as a later word is ignored", columns: []string{"Order Number", "Recipient", "Notes"}, wantContact: 1, wantMessage: -1, wantFallback: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			choice, err := chooseColumns(tt.columns)
			if err != nil {
				t.Fatalf("chooseColumns() error = %v", err)
			}
			if choice.contactIdx != tt.wantContact {
				t.Fatalf("contactIdx = %d, want %d", choice.contactIdx, tt.wantContact)
			}
			if choice.messageIdx != tt.wantMessage {
				t.Fatalf("messageIdx = %d, want %d", choice.messageIdx, tt.wantMessage)
			}
			if (choice.fallback != "") != tt.wantFallback {
				t.Fatalf("fallback = %q, want fallback %v", choice.fallback, tt.wantFallback)
			}
		})
	}
}

func TestChooseColumnsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := chooseColumns(nil); !errors.Is(err, domain.ErrDataFormat) {
		t.Fatalf("expected ErrDataFormat, got %v", err)
	}
}

func TestRecipientsFromTable(t *testing.T) {
	t.Parallel()

	table := sheet.Table{
		Columns: []string{"Name", "Contact", "Message"},
		Rows: [][]string{
			{"Ada", "+1 (555) 123-4567", "Hi Ada"},
			{"Bob", "9.1555e+11", ""},
			{"Cy", "n/a"},
		},
	}

	recipients, _, err := recipientsFromTable(table)
	if err != nil {
		t.Fatalf("recipientsFromTable() error = %v", err)
	}

	want := []domain.Recipient{
		{Row: 2, Contact: "15551234567", Message: "Hi Ada"},
		{Row: 3, Contact: "915550000000", Message: ""},
		{Row: 4, Contact: "", Message: ""},
	}
	if len(recipients) != len(want) {
		t.Fatalf("len = %d, want %d", len(recipients), len(want))
	}
	for i := range want {
		if recipients[i] != want[i] {
			t.Fatalf("recipients[%d] = %+v, want %+v", i, recipients[i], want[i])
		}
	}
	if err := recipients[2].Validate(); err == nil {
		t.Fatal("expected contact without digits to be invalid")
	}
}

func TestRecipientsFromTableUsesSourceRowNumbers(t *testing.T) {
	t.Parallel()

	recipients, _, err := recipientsFromTable(sheet.Table{
		Columns:    []string{"Contact"},
		Rows:       [][]string{{"111"}, {"none"}},
		RowNumbers: []int{2, 5},
	})
	if err != nil {
		t.Fatalf("recipientsFromTable() error = %v", err)
	}
	if recipients[0].Row != 2 || recipients[1].Row != 5 {
		t.Fatalf("rows = %d, %d, want 2, 5", recipients[0].Row, recipients[1].Row)
	}
}

func TestRecipientsFromTableWithoutMessageColumn(t *testing.T) {
	t.Parallel()

	recipients, choice, err := recipientsFromTable(sheet.Table{
		Columns: []string{"Number"},
		Rows:    [][]string{{"5551234"}},
	})
	if err != nil {
		t.Fatalf("recipientsFromTable() error = %v", err)
	}
	if choice.fallback == "" {
		t.Fatal("expected a fallback note")
	}
	if len(recipients) != 1 || recipients[0].Contact != "5551234" || recipients[0].Message != "" {
		t.Fatalf("recipients = %+v", recipients)
	}
}
