package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/llm"
)

const classifierSystemPrompt = `Ты — классификатор намерений пользователя. Вызови тул classify_intent с правильной категорией.

Категории (параметр intent):

- event: напоминание, календарь, встреча, событие, "завтра в", "на дату", "в пятницу", любая привязка к дате/времени
- task: список дел, пункты для выполнения, "первое... второе... третье", "нужно сделать X, Y, Z", задача, выполнить, не забудь — БЕЗ даты/времени. Список действий (пронумерованный или нет) = task, даже если в начале написано "создать заметку"
- note: один сплошной текст для сохранения — описание, идея, мысль, выписка — БЕЗ списка пунктов для выполнения
- unknown: нерелевантный ввод, нечитаемый текст, бессмыслица, нельзя определить

Правила:
1. При наличии даты/времени → всегда event
2. "Задача на завтра" → event (есть дата)
3. Список пунктов (Первое... Второе... / 1. 2. 3.) что нужно сделать → task
4. "Создать заметку" + список дел → task (содержимое важнее формулировки)
5. Бессмысленный набор символов, приветствие без контента → unknown`

var classifyIntentTool = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name:        "classify_intent",
		Description: "Классифицировать намерение пользователя. Вызови с одним из: note, task, event, unknown.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"intent": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"note", "task", "event", "unknown"},
					"description": "Категория запроса: note, task, event или unknown",
				},
			},
			"required": []string{"intent"},
		},
	},
}

// Classifier maps free-form user input to an Intent with a single forced
// tool call. It never fails: any degraded model behavior classifies as
// IntentUnknown.
type Classifier struct {
	client LLMClient
	model  string
	log    zerolog.Logger
}

// NewClassifier creates an intent classifier using the given model.
func NewClassifier(client LLMClient, model string, log zerolog.Logger) *Classifier {
	return &Classifier{
		client: client,
		model:  model,
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// Classify determines the intent of userInput. userContext, when present,
// is prepended as request context.
func (c *Classifier) Classify(ctx context.Context, userInput, userContext string) domain.Intent {
	if strings.TrimSpace(userInput) == "" {
		return domain.IntentUnknown
	}

	prompt := userInput
	if userContext != "" {
		prompt = "Контекст: " + userContext + "\n\nЗапрос: " + userInput
	}

	temperature := 0.0
	maxTokens := 8096
	req := &llm.ChatCompletionRequest{
		Model: c.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Tools:       []llm.Tool{classifyIntentTool},
		ToolChoice: map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": "classify_intent"},
		},
	}

	c.log.Info().Int("prompt_length", len(prompt)).Str("prompt_preview", preview(prompt, 100)).Msg("calling model")
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Warn().Err(err).Msg("classification call failed")
		return domain.IntentUnknown
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		c.log.Warn().Msg("no choices in response")
		return domain.IntentUnknown
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		c.log.Warn().Msg("no tool_calls in response")
		return domain.IntentUnknown
	}

	tc := message.ToolCalls[0]
	if tc.Function.Name != "classify_intent" {
		c.log.Warn().Str("name", tc.Function.Name).Msg("unexpected tool")
		return domain.IntentUnknown
	}

	var args struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		c.log.Warn().Err(err).Str("args", preview(tc.Function.Arguments, 100)).Msg("invalid json args")
		return domain.IntentUnknown
	}

	intent := domain.ParseIntent(args.Intent)
	if intent == domain.IntentUnknown && args.Intent != string(domain.IntentUnknown) {
		c.log.Warn().Str("intent", args.Intent).Msg("invalid intent value")
	}
	return intent
}
