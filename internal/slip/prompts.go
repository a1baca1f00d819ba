package slip

import "google.golang.org/genai"

const extractPrompt = "You are reading a photo of a bank transfer slip.\n" +
	"Extract the transaction it describes.\n\n" +
	"Rules:\n" +
	"- \"accountNumber\" is the account the money was sent FROM, exactly as printed (masked digits included).\n" +
	"- \"amount\" is the transferred amount as a plain positive number without currency symbols or separators.\n" +
	"- \"date\" is the transfer date in ISO-8601 format (YYYY-MM-DD).\n" +
	"- \"purpose\", \"sender\" and \"recipient\" may be omitted when not printed on the slip.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n"

const validatePrompt = "A transaction was extracted automatically from a bank slip:\n" +
	"account: %s\npurpose: %s\namount: %s\n\n" +
	"In one or two short sentences, point out anything that looks inconsistent or " +
	"implausible about these values. If everything looks fine, say so.\n" +
	"Return JSON of the form {\"validationResult\": \"...\"}.\n"

var detailsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"accountNumber": {Type: genai.TypeString},
		"purpose":       {Type: genai.TypeString},
		"amount":        {Type: genai.TypeNumber},
		"date":          {Type: genai.TypeString, Description: "ISO-8601 date"},
		"sender":        {Type: genai.TypeString},
		"recipient":     {Type: genai.TypeString},
	},
	Required: []string{"accountNumber", "amount", "date"},
}

var validationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"validationResult": {Type: genai.TypeString},
	},
	Required: []string{"validationResult"},
}
