package generation

const (
	patientSystemPrompt = "You are a healthcare data generator. Generate realistic but fictional patient data for testing purposes. " +
		"Ensure all data is properly formatted and realistic. Respond with JSON in this exact format: " +
		"{ 'fullName': string, 'email': string, 'birthday': string (YYYY-MM-DD), 'ssn': string (XXX-XX-XXXX), " +
		"'creditCard': string (XXXX XXXX XXXX XXXX), 'expiryDate': string (MM/YY), 'cvv': string (3-4 digits) }"

	patientUserPrompt = "Generate realistic patient form data with proper formatting for healthcare testing purposes."

	chatSystemPrompt = "You are a helpful healthcare AI assistant. You help users with patient form data generation " +
		"and Azure blob storage operations. Be professional, concise, and helpful. Focus on healthcare data management tasks."

	// FallbackReply is stored when the model answers with empty content.
	FallbackReply = "I'm sorry, I couldn't generate a response at this time."
)

func chatUserPrompt(message, chatContext string) string {
	return "Context: " + chatContext + "\n\nUser message: " + message
}
