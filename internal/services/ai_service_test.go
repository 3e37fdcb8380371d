package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFoodAnalysis(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"calories line", "Пицца Маргарита (тесто, сыр)\nКалории: 800", true},
		{"proteins line", "Белки: 25.5 г (15%)", true},
		{"bread units", "Хлебные единицы: 4", true},
		{"mixed case", "КАЛОРИИ: 200", true},
		{"no food", "На фото нет еды, это фотография собаки.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFoodAnalysis(tt.text))
		})
	}
}

func TestHasAnalyzerError(t *testing.T) {
	assert.True(t, HasAnalyzerError("Ошибка: не удалось распознать блюдо"))
	assert.True(t, HasAnalyzerError("произошла ОШИБКА при анализе"))
	assert.False(t, HasAnalyzerError("Калории: 300\nПриятного аппетита!"))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, extractJSON(`Here you go: {"a": 1} enjoy`))
	assert.Equal(t, "", extractJSON("no json here"))
	assert.Equal(t, "", extractJSON("} backwards {"))
}

func TestParseNutritionReply(t *testing.T) {
	reply := "```json\n" + `{
		"dish_name": "Борщ",
		"calories": 250,
		"proteins": 12.5,
		"proteins_percent": 20,
		"fats": null,
		"fats_percent": null,
		"carbohydrates": "30",
		"carbohydrates_percent": 45,
		"bread_units": 2.5,
		"total_weight": 350,
		"glycemic_index": null,
		"protein_bje": null,
		"fats_bje": null,
		"calories_bje": null,
		"bje_units": null
	}` + "\n```"

	fields, ok := parseNutritionReply(reply)
	require.True(t, ok)

	require.NotNil(t, fields["dish_name"])
	assert.Equal(t, "Борщ", *fields["dish_name"])
	require.NotNil(t, fields["calories"])
	assert.Equal(t, "250", *fields["calories"])
	require.NotNil(t, fields["proteins"])
	assert.Equal(t, "12.5", *fields["proteins"])
	require.NotNil(t, fields["carbohydrates"])
	assert.Equal(t, "30", *fields["carbohydrates"])
	require.NotNil(t, fields["bread_units"])
	assert.Equal(t, "2.5", *fields["bread_units"])

	// Nulls survive as nil, they are not coerced to empty strings.
	assert.Nil(t, fields["fats"])
	assert.Nil(t, fields["glycemic_index"])
	assert.Nil(t, fields["bje_units"])
}

func TestParseNutritionReplyRejectsGarbage(t *testing.T) {
	_, ok := parseNutritionReply("the model refused to answer")
	assert.False(t, ok)

	_, ok = parseNutritionReply("{broken json")
	assert.False(t, ok)
}

func TestStringifyNutritionIgnoresUnknownKeys(t *testing.T) {
	fields := stringifyNutrition(map[string]interface{}{
		"dish_name": "Салат",
		"comment":   "not part of the schema",
	})

	require.NotNil(t, fields["dish_name"])
	assert.Equal(t, "Салат", *fields["dish_name"])
	_, present := fields["comment"]
	assert.False(t, present)
	// Every schema field is present even when the reply omitted it.
	assert.Len(t, fields, len(NutritionFields))
	assert.Nil(t, fields["calories"])
}
