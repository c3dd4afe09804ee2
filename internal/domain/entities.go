package domain

import "time"

// ProfileID — неизменяемый идентификатор анкеты. Присваивается при создании
// и никогда не переиспользуется; порядковые номера в списках действительны
// только на момент рендера.
type ProfileID string

// Profile описывает анкету пользователя: ссылка на форму и комментарий.
type Profile struct {
	ID        ProfileID `json:"id"`
	Owner     int64     `json:"owner"`
	URL       string    `json:"url"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishOutcome сообщает, удалось ли опубликовать анкету в канале.
type PublishOutcome int

const (
	// Published — анкета сохранена и опубликована в канале.
	Published PublishOutcome = iota
	// PublishedLocallyOnly — анкета сохранена, но публикация не удалась.
	// Локальная запись при этом не откатывается.
	PublishedLocallyOnly
)

// Page — страница анкет для просмотра.
type Page struct {
	Items   []Profile
	Number  int
	HasMore bool
}

// AdminListItem — строка админского списка. Порядковый номер действителен
// только для того рендера, в котором был выдан.
type AdminListItem struct {
	Ordinal int
	Profile Profile
}

// NoticeKind — тип уведомления администратору.
type NoticeKind string

const (
	NoticePublishFailed NoticeKind = "publish_failed"
	NoticeRetractFailed NoticeKind = "retract_failed"
)

// AdminNotice — асинхронное уведомление администратору о сбое внешнего
// сервиса, привязанное к конкретному пользователю.
type AdminNotice struct {
	Kind       NoticeKind `json:"kind"`
	UserID     int64      `json:"user_id"`
	Text       string     `json:"text"`
	OccurredAt time.Time  `json:"occurred_at"`
}
