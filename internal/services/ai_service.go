package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/vladimiradmaev/food-diary/internal/config"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"google.golang.org/api/option"
)

const analysisPrompt = `Определи есть ли тут какое либо блюдо/еда/напиток. Если да то напиши ответ в формате: название всех блюд на фото с заглавной буквы через запятую и затем в скобках каждый продукт который ты увидел.
Определи суммарно во всех продуктах питания на фото:
Калории: int
Белки: float г (int%)
Жиры: float г (int%)
Углеводы: float г (int%) – float ХЕ
Общий вес: int г.
Гликемический индекс: float г (int%)
Если в продукте есть белки и жиры, то напиши: Внимание! Продукт содержит белково-жировые единицы (БЖЕ). В зависимости от общего количества жирной пищи может потребоваться дополнительно компенсировать БЖУ через 2-3 часа!
Посчитай белково-жировые единицы: float г (int%) – float БЖЕ
После напиши сообщение: Приятного аппетита!`

const extractionTemplate = `Please extract the relevant data from the text and format it in this JSON structure:

{
    "dish_name": <value>,
    "calories": <value>,
    "proteins": <value>.0,
    "proteins_percent": <value>,
    "fats": <value>,
    "fats_percent": <value>,
    "carbohydrates": <value>,
    "carbohydrates_percent": <value>,
    "bread_units": <value>,
    "total_weight": <value>,
    "glycemic_index": <value>,
    "protein_bje": <value>,
    "fats_bje": <value>,
    "calories_bje": <value>,
    "bje_units": <value>
}`

const extractionAttempts = 5

// NutritionFields is the fixed schema of a structured extraction result.
var NutritionFields = []string{
	"dish_name",
	"calories",
	"proteins",
	"proteins_percent",
	"fats",
	"fats_percent",
	"carbohydrates",
	"carbohydrates_percent",
	"bread_units",
	"total_weight",
	"glycemic_index",
	"protein_bje",
	"fats_bje",
	"calories_bje",
	"bje_units",
}

// nutritionKeywords mark a reply as a genuine nutrition answer. A reply
// without any of them is treated as "no food detected".
var nutritionKeywords = []string{
	"калори",
	"белк",
	"жир",
	"углевод",
	"хлебн",
	"протеин",
}

type AIService struct {
	provider     string
	openaiClient *openai.Client
	geminiClient *genai.Client
	timeout      time.Duration
}

func NewAIService(cfg config.AIConfig) (*AIService, error) {
	s := &AIService{
		provider: cfg.Provider,
		timeout:  cfg.RequestTimeout,
	}

	switch cfg.Provider {
	case "gemini":
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
	default:
		s.openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	return s, nil
}

// AnalyzeFoodImage sends the image with the fixed nutrition prompt and
// returns the raw reply text. Retry policy lives in the orchestrator.
func (s *AIService) AnalyzeFoodImage(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.provider == "gemini" {
		return s.analyzeWithGemini(ctx, image)
	}
	return s.analyzeWithOpenAI(ctx, image)
}

func (s *AIService) analyzeWithOpenAI(ctx context.Context, image []byte) (string, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := s.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: analysisPrompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: fmt.Sprintf("data:image/jpeg;base64,%s", imageBase64),
							},
						},
					},
				},
			},
		},
	)
	if err != nil {
		return "", apperrors.NewExternalAPIError(err, "openai")
	}

	var response strings.Builder
	for _, choice := range resp.Choices {
		response.WriteString(choice.Message.Content)
	}
	return response.String(), nil
}

func (s *AIService) analyzeWithGemini(ctx context.Context, image []byte) (string, error) {
	model := s.geminiClient.GenerativeModel("gemini-1.5-flash")

	img := genai.ImageData("image/jpeg", image)
	resp, err := model.GenerateContent(ctx, img, genai.Text(analysisPrompt))
	if err != nil {
		return "", apperrors.NewExternalAPIError(err, "gemini")
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewExternalAPIError(fmt.Errorf("empty response"), "gemini")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", apperrors.NewExternalAPIError(fmt.Errorf("unexpected response part type"), "gemini")
	}
	return string(text), nil
}

// ExtractNutrition asks the backend to reformat a free-text nutrition summary
// into the fixed JSON schema. Tries up to 5 times before giving up with a
// typed extraction error; the caller must not write partial data.
func (s *AIService) ExtractNutrition(ctx context.Context, text string) (map[string]*string, error) {
	for attempt := 0; attempt < extractionAttempts; attempt++ {
		reply, err := s.requestExtraction(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if fields, ok := parseNutritionReply(reply); ok {
			return fields, nil
		}
	}
	return nil, apperrors.ErrExtractionFailed
}

func (s *AIService) requestExtraction(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.provider == "gemini" {
		model := s.geminiClient.GenerativeModel("gemini-1.5-flash")
		prompt := fmt.Sprintf("You are a helpful assistant. Please format the response in the following JSON template.\n\n%s\n\n%s", text, extractionTemplate)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", apperrors.NewExternalAPIError(err, "gemini")
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", apperrors.NewExternalAPIError(fmt.Errorf("empty response"), "gemini")
		}
		part, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			return "", apperrors.NewExternalAPIError(fmt.Errorf("unexpected response part type"), "gemini")
		}
		return string(part), nil
	}

	resp, err := s.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a helpful assistant. Please format the response in the following JSON template.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: extractionTemplate,
				},
			},
		},
	)
	if err != nil {
		return "", apperrors.NewExternalAPIError(err, "openai")
	}

	var response strings.Builder
	for _, choice := range resp.Choices {
		response.WriteString(choice.Message.Content)
	}
	return response.String(), nil
}

// parseNutritionReply parses an extraction reply, either as a bare JSON
// object or as a JSON object embedded in surrounding prose. Values are
// stringified; nulls stay nil.
func parseNutritionReply(reply string) (map[string]*string, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		jsonStr := extractJSON(reply)
		if jsonStr == "" {
			return nil, false
		}
		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return nil, false
		}
	}
	return stringifyNutrition(raw), true
}

// stringifyNutrition restricts the parsed object to the fixed field set,
// converting present values to strings and preserving nulls as nil.
func stringifyNutrition(raw map[string]interface{}) map[string]*string {
	fields := make(map[string]*string, len(NutritionFields))
	for _, key := range NutritionFields {
		value, ok := raw[key]
		if !ok || value == nil {
			fields[key] = nil
			continue
		}
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case float64:
			// Avoid the exponent notation fmt.Sprint would pick for
			// large values; diary columns hold plain decimal strings.
			str = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			str = fmt.Sprint(v)
		}
		fields[key] = &str
	}
	return fields
}

// IsFoodAnalysis reports whether the reply contains at least one domain
// keyword; otherwise it is treated as "no food detected" and retried.
func IsFoodAnalysis(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range nutritionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// HasAnalyzerError reports whether the analyzer flagged its own reply as an
// error; this triggers exactly one corrective re-request of the same image.
func HasAnalyzerError(text string) bool {
	return strings.Contains(strings.ToLower(text), "ошибка")
}

// extractJSON attempts to extract a valid JSON object from the given string.
// It handles cases where the JSON is wrapped in code blocks (```json ... ```) or other text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
