package service

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/sheet"
)

const (
	contactHeader = "contact"
	messageHeader = "message"
)

var phoneHeaderHints = []string{"phone", "number", "mobile", "whatsapp", "tel"}

// columnChoice is where contact and message values are read from.
// messageIdx is -1 when the sheet has no message column.
type columnChoice struct {
	contactIdx int
	messageIdx int
	fallback   string
}

func chooseColumns(columns []string) (columnChoice, error) {
	if len(columns) == 0 {
		return columnChoice{}, fmt.Errorf("%w: sheet is empty or has no columns", domain.ErrDataFormat)
	}

	choice := columnChoice{contactIdx: -1, messageIdx: -1}
	for i, name := range columns {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == contactHeader && choice.contactIdx < 0 {
			choice.contactIdx = i
		}
		if normalized == messageHeader && choice.messageIdx < 0 {
			choice.messageIdx = i
		}
	}
	if choice.contactIdx >= 0 {
		return choice, nil
	}

	for i, name := range columns {
		if i == choice.messageIdx {
			continue
		}
		if isPhoneHeader(name) {
			choice.contactIdx = i
			choice.fallback = fmt.Sprintf("No 'Contact' column found. Using %q column for contact numbers.", strings.TrimSpace(name))
			return choice, nil
		}
	}

	if len(columns) > 1 && choice.messageIdx != 1 {
		choice.contactIdx = 1
		choice.fallback = "No 'Contact' column found. Using second column for contact numbers."
		return choice, nil
	}

	choice.contactIdx = 0
	choice.fallback = "No 'Contact' column found. Using first column for contact numbers."
	return choice, nil
}

// isPhoneHeader matches headers that start with a phone hint, such as
// "Phone Number", "Telephone" or "WhatsApp No".
func isPhoneHeader(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, hint := range phoneHeaderHints {
		if strings.HasPrefix(normalized, hint) {
			return true
		}
	}
	return false
}

// recipientsFromTable maps table rows to recipients. Row numbers are the
// 1-based spreadsheet rows the table reports.
func recipientsFromTable(table sheet.Table) ([]domain.Recipient, columnChoice, error) {
	choice, err := chooseColumns(table.Columns)
	if err != nil {
		return nil, columnChoice{}, err
	}

	recipients := make([]domain.Recipient, 0, len(table.Rows))
	for i, row := range table.Rows {
		contact := cell(row, choice.contactIdx)
		message := ""
		if choice.messageIdx >= 0 {
			message = cell(row, choice.messageIdx)
		}
		recipients = append(recipients, domain.NewRecipient(table.RowNumber(i), contact, message))
	}

	return recipients, choice, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
