package domain

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки валидации: ввод отвергнут, состояние не менялось.
var (
	ErrMalformedInput  = errors.New("нужна ссылка и комментарий через пробел")
	ErrInvalidURL      = errors.New("ссылка не похожа на форму из списка разрешённых")
	ErrContentRejected = errors.New("комментарий содержит запрещённые слова")
)

// Ошибки политики: операция запрещена текущим состоянием.
var (
	ErrBanned           = errors.New("пользователь заблокирован")
	ErrDuplicateProfile = errors.New("у пользователя уже есть анкета")
	ErrProfileNotFound  = errors.New("анкета не найдена")
	ErrNotBanned        = errors.New("пользователь не в списке заблокированных")
	ErrInvalidPosition  = errors.New("номер вне текущего списка")
	ErrNoSession        = errors.New("нет активного диалога")
	ErrNotAdmin         = errors.New("команда доступна только администратору")
)

// Ошибки просмотра.
var (
	ErrNoProfiles = errors.New("анкет пока нет")
	ErrAllSeen    = errors.New("все доступные анкеты просмотрены")
)

// ErrPersistence — снапшот не записан, мутация откатена.
var ErrPersistence = errors.New("не удалось сохранить состояние")

// CooldownError сообщает, сколько осталось ждать до следующей отправки.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("подождите ещё %d сек. перед отправкой анкеты", int(e.Remaining.Seconds()))
}

// RemainingSeconds возвращает остаток ожидания, округлённый вверх до секунды.
func (e *CooldownError) RemainingSeconds() int {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
