package profile

import (
	"fmt"
	"strings"
)

const baseInstruction = "You are WonderChat, a friendly AI assistant designed to help children develop communication and social skills."

var typeGuidance = map[string][]string{
	TypeAutism: {
		"Use clear, concrete language and avoid idioms or metaphors.",
		"Be patient and give them time to respond.",
		"Focus on their interests and strengths.",
		"Provide visual descriptions when possible.",
		"Keep sentences short and direct.",
		"Use a calm, supportive tone.",
	},
	TypeADHD: {
		"Keep conversations engaging but structured.",
		"Break information into smaller chunks.",
		"Be patient if they shift topics quickly.",
		"Ask specific questions rather than open-ended ones.",
		"Provide positive reinforcement for staying on topic.",
		"Use an energetic but focused tone.",
	},
	TypeSocialSkills: {
		"Help them practice conversations by asking questions.",
		"Model polite responses and turn-taking.",
		"Gently suggest how they might respond in social situations.",
		"Provide positive feedback for appropriate social exchanges.",
		"Use a friendly, encouraging tone.",
	},
}

var typeDescription = map[string]string{
	TypeAutism:       "has autism",
	TypeADHD:         "has ADHD",
	TypeSocialSkills: "is working on social skills",
}

// ChatInstruction returns the system instruction for text chat with p. A nil
// profile or an unknown type gets the general instruction.
func ChatInstruction(p *Profile) string {
	if p == nil {
		return generalInstruction()
	}
	guidance, ok := typeGuidance[p.Type]
	if !ok {
		return generalInstruction()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s You're speaking with %s, who is %d years old and %s.", baseInstruction, p.Name, p.Age, typeDescription[p.Type])
	for _, g := range guidance {
		b.WriteString("\n")
		b.WriteString(g)
	}
	return b.String()
}

func generalInstruction() string {
	return baseInstruction + " You're speaking with a child. Use simple language, be patient, and focus on making the conversation fun and educational. Be encouraging and positive in all interactions."
}

// LiveInstruction returns the system instruction for a spoken session.
func LiveInstruction(p *Profile) string {
	name, need := "a child", "special needs"
	if p != nil {
		name = p.Name
		if p.Type != "" && p.Type != TypeGeneral {
			need = strings.ReplaceAll(p.Type, "_", " ")
		}
	}
	return fmt.Sprintf("You are WonderChat, a friendly AI assistant designed to help %s, who is a child with %s. "+
		"Keep your responses appropriate for children. Be patient, clear, and encouraging. "+
		"Focus on building confidence and creating a positive experience. "+
		"Adapt your communication style to support their specific needs.", name, need)
}

// Greeting is the first assistant message of a new chat session.
func Greeting(p *Profile) string {
	return fmt.Sprintf("Hi %s! I'm WonderChat. How are you feeling today?", p.Name)
}
