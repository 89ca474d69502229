package domain

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrInvalidTransition повертається при спробі недозволеного переходу статусу
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrResponseConflict повертається, якщо тривога вже має іншу відповідь
	ErrResponseConflict = errors.New("alert already responded with different actions")

	// ErrAlertNotFound повертається, якщо тривогу не знайдено
	ErrAlertNotFound = errors.New("alert not found")

	// ErrTaskNotFound повертається, якщо завдання не знайдено
	ErrTaskNotFound = errors.New("processing task not found")

	// ErrAlertImageNotFound повертається, якщо зображення тривоги не знайдено
	ErrAlertImageNotFound = errors.New("alert image not found")
)

// CanTransitionTo перевіряє, чи дозволений перехід статусу завдання.
// Дозволені лише прямі переходи: pending -> processing -> {completed, failed}.
// Вихід з термінального статусу заборонений.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusProcessing || next == TaskStatusFailed
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		// completed та failed термінальні
		return false
	}
}

// Terminal повертає true для термінальних статусів завдання
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ApplyResponse фіксує відповідь застосунку на тривогу: pending -> responded.
// Повторна ідентична відповідь ідемпотентна; відповідь з іншим набором дій
// на вже опрацьовану тривогу відхиляється.
func (a *Alert) ApplyResponse(actions []string) error {
	if a.Response == 1 {
		if equalActions(a.Actions, actions) {
			return nil
		}
		return ErrResponseConflict
	}

	a.Response = 1
	a.Actions = actions

	// Статус стає completed лише коли отримано і відповідь, і зображення
	if a.ImageReceived == 1 {
		a.Status = AlertStatusCompleted
	} else {
		a.Status = AlertStatusResponded
	}

	return nil
}

// ApplyImage фіксує отримання зображення для тривоги.
// Зображення до відповіді не змінює статус: completed досягається
// лише після того, як відбулися обидві події.
func (a *Alert) ApplyImage(imageURL string) {
	a.ImageReceived = 1
	a.ImageURL = imageURL

	if a.Response == 1 {
		a.Status = AlertStatusCompleted
	}
}

// SortTasksForDispatch упорядковує завдання для відправлення дрону:
// спочатку за пріоритетом (спаданням), при рівному пріоритеті
// за часом створення (раніші першими).
func SortTasksForDispatch(tasks []*ProcessingTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// NewAlertDefaults встановлює початкові значення для нової тривоги
func (a *Alert) NewAlertDefaults(now time.Time) {
	a.Response = 0
	a.ImageReceived = 0
	a.Status = AlertStatusPending
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}

func equalActions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
