package event

import "fmt"

// taskStatusLabels translates portal task status codes to display text.
var taskStatusLabels = map[string]string{
	"2": "🆕 Ждет выполнения",
	"3": "🔄 Выполняется",
	"4": "⏳ Ожидает контроля",
	"5": "✅ Завершена",
	"6": "⏸ Отложена",
}

// taskPriorityLabels translates portal task priority codes to display text.
var taskPriorityLabels = map[string]string{
	"0": "Низкий",
	"1": "Средний",
	"2": "Высокий",
}

// TaskStatusLabel returns the display label for a task status code,
// falling back to the raw code for unknown values.
func TaskStatusLabel(code string) string {
	if label, ok := taskStatusLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Неизвестный статус (%s)", code)
}

// TaskPriorityLabel returns the display label for a task priority code,
// or the raw code when unknown.
func TaskPriorityLabel(code string) string {
	if label, ok := taskPriorityLabels[code]; ok {
		return label
	}
	return code
}
