package extraction

import (
	"fmt"
	"strings"

	"github.com/zombor/receipt-sorter/internal/domain"
)

// extractionPrompt is filled with the currency rules and the receipt text
const extractionPrompt = `Extract the following information from this receipt and return it as a JSON object:

Required fields:
- total_amount: The total amount paid (numeric value only, no currency symbols)
- currency: Currency code in ISO 4217 format (e.g., CAD, USD, EUR, GBP)
- date: Transaction date in YYYY-MM-DD format
- vendor: Name of the merchant/vendor
- description: Brief description of items/services purchased (1-2 sentences max)

Receipt text:
%s

Important instructions:
- For currency detection, look for currency symbols ($, €, £, ¥), currency codes, or infer from vendor location/language
%s
- For the date, try multiple formats and convert to YYYY-MM-DD
- For total amount, use the final total after all taxes and fees
- If any field cannot be determined, use "UNKNOWN" as the value

Return ONLY a valid JSON object with these exact keys: total_amount, currency, date, vendor, description
Do not include any explanation or markdown formatting, just the raw JSON.`

// buildExtractionPrompt renders the extraction prompt. homeCurrency drives
// the bare-dollar rule and is omitted when empty.
func buildExtractionPrompt(text, homeCurrency string) string {
	var rules []string
	if homeCurrency != "" {
		rules = append(rules,
			fmt.Sprintf("- If the vendor appears to be based in the %s currency area or mentions %s, use %s as currency", homeCurrency, homeCurrency, homeCurrency),
			fmt.Sprintf("- If you see $ without clarification and the receipt seems North American, default to %s", homeCurrency),
		)
	}
	return fmt.Sprintf(extractionPrompt, text, strings.Join(rules, "\n"))
}

// classificationPrompt is filled with the category list, receipt details and definitions
const classificationPrompt = `Classify this receipt into one of the following tax deduction categories:

%s

Receipt details:
- Vendor: %s
- Amount: %s %s
- Date: %s
- Description: %s

Category descriptions:
%s

Instructions:
1. Choose the MOST appropriate category from the list above
2. Provide a confidence score from 0-100 (100 = very certain, 0 = complete guess)
3. Consider the vendor name and description to make the best match
4. For meals, always use "Meals & Entertainment" even if it's a grocery store (if food-related)
5. For gas stations, use "Vehicle Expenses"
6. For online services like AWS, hosting, use "Office Expenses"

Return ONLY a valid JSON object with these exact keys: category, confidence
Example: {"category": "Office Expenses", "confidence": 95}
Do not include any explanation, just the raw JSON.`

func buildClassificationPrompt(r domain.Record) string {
	var names, defs strings.Builder
	for _, c := range domain.Categories() {
		fmt.Fprintf(&names, "- %s\n", c)
		fmt.Fprintf(&defs, "- %s: %s\n", c, c.Description())
	}
	return fmt.Sprintf(classificationPrompt,
		strings.TrimSuffix(names.String(), "\n"),
		r.Vendor.OrElse(domain.Unknown),
		r.AmountString(),
		r.CurrencyCode(),
		r.DateString(),
		r.Description.OrElse("No description"),
		strings.TrimSuffix(defs.String(), "\n"),
	)
}
