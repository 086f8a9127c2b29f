package llm

import (
	"fmt"

	"github.com/parsea-dev/parsea/internal/model"
)

// Prompt construction is pure string interpolation. Merchant and description
// text is embedded as-is; the response parser tolerates whatever the model
// echoes back, so no escaping happens here.

const classificationSystemPrompt = `You are a financial assistant helping freelancers classify their bank transactions.
Your task is to determine if a transaction is a business expense or personal expense.

CRITICAL INSTRUCTIONS:
1. Return ONLY a simple JSON object
2. Do NOT include any explanatory text before or after the JSON
3. Do NOT create nested structures
4. Use ONLY the exact field names specified

REQUIRED FORMAT:
Return a JSON object with these exact fields:
- classification: "business" or "personal" (string)
- confidence: number between 0.0 and 1.0 (float)
- reasoning: brief explanation as plain text (string)
- category: suggested category as plain text (string)

FEW-SHOT EXAMPLES:

Example 1:
Transaction: Office supplies from Office Depot, $45.50
Correct response: {"classification": "business", "confidence": 0.9, "reasoning": "Office supplies are typically business expenses for freelancers", "category": "office_supplies"}

Example 2:
Transaction: Grocery store purchase, $120.00
Correct response: {"classification": "personal", "confidence": 0.8, "reasoning": "Groceries are personal living expenses", "category": "food_groceries"}

Example 3:
Transaction: Zoom subscription, $1380.44
Correct response: {"classification": "business", "confidence": 0.95, "reasoning": "Video conferencing tools are essential for business communication", "category": "software_subscription"}

Consider these factors when classifying:
- Business context (freelancing, consulting, etc.)
- Transaction description and merchant
- Amount and frequency
- Tax implications`

const extractionSystemPrompt = `You are a financial assistant helping freelancers extract transaction data from bank statements.
Your task is to identify and extract individual transactions from the provided bank statement text.

CRITICAL INSTRUCTIONS:
1. Extract ONLY the transaction data, do not create nested structures
2. Each transaction should be a simple, flat JSON object
3. Do NOT put JSON objects inside other fields
4. Use ONLY plain text values for all fields

REQUIRED FORMAT:
Each transaction must be a simple JSON object with these exact fields:
- date: transaction date in YYYY-MM-DD format (e.g., "2024-01-15")
- description: plain text description (e.g., "Zoom Subscription")
- amount: numeric amount as a number, not a string; negative for debits (e.g., -1380.44)
- currency: currency code (e.g., "USD", "GBP", "EUR")
- merchant: merchant name (e.g., "Zoom Video Communications")

FEW-SHOT EXAMPLES:

Example 1 - Bank Statement Line:
"15/01/2024 Zoom Video Communications -1380.44 GBP"
Correct extraction:
{"date": "2024-01-15", "description": "Zoom Video Communications", "amount": -1380.44, "currency": "GBP", "merchant": "Zoom"}

Example 2 - Bank Statement Line:
"16/01/2024 Office Depot Office Supplies -45.50 USD"
Correct extraction:
{"date": "2024-01-16", "description": "Office Supplies", "amount": -45.50, "currency": "USD", "merchant": "Office Depot"}

Example 3 - Bank Statement Line:
"17/01/2024 Client Payment +1500.00 USD"
Correct extraction:
{"date": "2024-01-17", "description": "Client Payment", "amount": 1500.00, "currency": "USD", "merchant": "Client"}

Remember: Keep it simple, flat, and clean. No nested objects, no complex structures.`

// BuildClassificationPrompt constructs the classification prompt for a
// single transaction.
func BuildClassificationPrompt(txn model.ExtractedTransaction) string {
	merchant := txn.Merchant
	if merchant == "" {
		merchant = "Unknown"
	}

	currency := txn.Currency
	if currency == "" {
		currency = "USD"
	}

	userPrompt := fmt.Sprintf(`Please classify this transaction:

Date: %s
Description: %s
Amount: %s %s
Merchant: %s

Return ONLY a simple JSON object with the required fields. Follow the examples above exactly.`,
		txn.Date,
		txn.Description,
		txn.Amount.String(),
		currency,
		merchant)

	return classificationSystemPrompt + "\n\n" + userPrompt
}

// BuildExtractionPrompt constructs the statement extraction prompt for the
// full text of a bank statement.
func BuildExtractionPrompt(statementText string) string {
	userPrompt := fmt.Sprintf(`Please extract all transactions from this bank statement:

%s

Return ONLY a JSON array of simple transaction objects. Each transaction should be flat with no nested structures.
Follow the examples above exactly.`, statementText)

	return extractionSystemPrompt + "\n\n" + userPrompt
}
