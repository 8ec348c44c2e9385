package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plant-care-bot/internal/catalog"
	"plant-care-bot/internal/model"
	"plant-care-bot/internal/notify"
	"plant-care-bot/internal/repository"
	"plant-care-bot/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stagePick
	stageInterval
)

const (
	cbWaterPrefix      = "water:"
	cbConfirmDelPrefix = "confirmdel:"
	cbCancelDel        = "canceldel"
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnManual       = "✍️ Ввести вручную"
	btnCancelDialog = "⏪ Отменить ввод"
	menuLabelPlants = "🌿 Растения"
	menuLabelTasks  = "📋 Задачи"
	menuLabelAdd    = "➕ Добавить растение"
	menuLabelHelp   = "ℹ️ Помощь"
	iconDefault     = "🟢"
	iconDue         = "⏳"
	iconOverdue     = "⚠️"
	iconWater       = "💧"
)

type conversationState struct {
	stage   conversationStage
	input   service.PlantInput
	results []catalog.Entry
}

// Bot aggregates Telegram API with services. It is also the delivery channel
// for fired reminders (notify.Sender).
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	plantSvc      *service.PlantService
	taskSvc       *service.TaskService
	reminderSvc   *service.ReminderService
	catalog       *catalog.Client
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

var _ notify.Sender = (*Bot)(nil)

func New(token string, userRepo *repository.UserRepository, plantSvc *service.PlantService, taskSvc *service.TaskService, reminderSvc *service.ReminderService, catalogClient *catalog.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		plantSvc:      plantSvc,
		taskSvc:       taskSvc,
		reminderSvc:   reminderSvc,
		catalog:       catalogClient,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// SendAlert delivers a fired watering reminder.
func (b *Bot) SendAlert(alert notify.Alert) error {
	text := fmt.Sprintf("%s <b>Пора полить!</b>\nРастение «%s» сегодня ждёт полива.\nОтметить: /complete %d", iconWater, escape(alert.PlantName), alert.TaskID)
	return b.sendText(alert.ChatID, text)
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён. Начни заново через /addplant.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /addplant, чтобы добавить растение, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "addplant":
		return b.startAddPlantConversation(ctx, msg)
	case "plants":
		return b.handleListPlants(ctx, msg)
	case "plant":
		return b.handlePlantDetail(ctx, msg)
	case "tasks":
		return b.handleTasks(ctx, msg)
	case "overdue":
		return b.handleOverdue(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "deleteplant":
		return b.handleDeletePlant(ctx, msg)
	case "notifications":
		return b.handleNotifications(ctx, msg)
	case "reschedule":
		return b.handleReschedule(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я слежу за твоими растениями и напоминаю о поливе.</b>\n\nКоманды:\n"+
			"• /addplant — добавить растение\n"+
			"• /plants — список растений\n"+
			"• /tasks — задачи на сегодня и ближайшие дни\n"+
			"• /overdue — просроченные поливы\n"+
			"• /complete &lt;id&gt; — отметить задачу выполненной\n"+
			"• /notifications on|off — напоминания\n"+
			"• /help — подсказки",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /addplant — добавить растение (с поиском по каталогу)\n" +
		"• /plants — список растений с ближайшим поливом\n" +
		"• /plant &lt;id&gt; — карточка растения и его задачи\n" +
		"• /tasks — задачи на сегодня и ближайшие дни\n" +
		"• /overdue — просроченные поливы\n" +
		"• /complete &lt;id&gt; — отметить задачу выполненной\n" +
		"• /deleteplant &lt;id&gt; — удалить растение вместе с задачами\n" +
		"• /notifications on|off — включить или выключить напоминания\n" +
		"• /reschedule — пересобрать напоминания заново\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startAddPlantConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🌱 Добавляем растение.\n<b>Шаг 1:</b> как оно называется?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым. Как называется растение?", cancelKeyboard())
		}
		state.input.Name = text
		return b.offerCatalogResults(ctx, msg.Chat.ID, state)
	case stagePick:
		if isManualInput(text) {
			state.stage = stageInterval
			return b.sendWithReplyMarkup(msg.Chat.ID, "💧 Как часто поливать, в днях? Можно диапазон, например <code>7-10</code> (или «Пропустить» — будет раз в 7 дней).", skipKeyboard())
		}
		index, err := strconv.Atoi(text)
		if err != nil || index < 1 || index > len(state.results) {
			return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Отправь номер от 1 до %d или нажми «%s».", len(state.results), btnManual), manualKeyboard())
		}
		return b.finishFromCatalog(ctx, msg.From, msg.Chat.ID, state, state.results[index-1])
	case stageInterval:
		if !isSkipInput(text) {
			state.input.BenchmarkValue = text
			state.input.BenchmarkUnit = "days"
		}
		err := b.finishAddPlant(ctx, msg.From, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /addplant.")
	}
}

// offerCatalogResults ищет растение в каталоге; без каталога сразу переходим
// к ручному вводу интервала.
func (b *Bot) offerCatalogResults(ctx context.Context, chatID int64, state *conversationState) error {
	if !b.catalog.Enabled() {
		state.stage = stageInterval
		return b.sendWithReplyMarkup(chatID, "💧 Как часто поливать, в днях? Можно диапазон, например <code>7-10</code> (или «Пропустить» — будет раз в 7 дней).", skipKeyboard())
	}

	searchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	results, err := b.catalog.Search(searchCtx, state.input.Name)
	if err != nil {
		log.Printf("catalog search %q: %v", state.input.Name, err)
	}
	if len(results) == 0 {
		state.stage = stageInterval
		return b.sendWithReplyMarkup(chatID, "🔍 В каталоге ничего не нашлось, заполним вручную.\n💧 Как часто поливать, в днях? (или «Пропустить»)", skipKeyboard())
	}

	if len(results) > 5 {
		results = results[:5]
	}
	state.results = results
	state.stage = stagePick

	var builder strings.Builder
	builder.WriteString("🔍 <b>Нашлось в каталоге:</b>\n")
	for i, entry := range results {
		builder.WriteString(fmt.Sprintf("%d. %s", i+1, escape(entry.Name)))
		if len(entry.ScientificNames) > 0 {
			builder.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(entry.ScientificNames[0])))
		}
		builder.WriteByte('\n')
	}
	builder.WriteString("\nОтправь номер подходящего варианта или введи данные вручную.")
	return b.sendWithReplyMarkup(chatID, builder.String(), manualKeyboard())
}

func (b *Bot) finishFromCatalog(ctx context.Context, from *tgbotapi.User, chatID int64, state *conversationState, picked catalog.Entry) error {
	detailsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	input := state.input
	details, err := b.catalog.Details(detailsCtx, picked.ID)
	if err != nil {
		// Каталог best-effort: создаём растение с тем, что есть.
		log.Printf("catalog details %d: %v", picked.ID, err)
		input.ScientificNames = picked.ScientificNames
		input.ImageURL = picked.ImageURL
		catalogID := picked.ID
		input.CatalogID = &catalogID
	} else {
		input.ScientificNames = details.ScientificNames
		input.ImageURL = details.ImageURL
		input.Watering = details.Watering
		input.BenchmarkValue = details.Benchmark.Value
		input.BenchmarkUnit = details.Benchmark.Unit
		input.Sunlight = details.Sunlight
		input.Description = details.Description
		catalogID := details.ID
		input.CatalogID = &catalogID
	}

	err = b.finishAddPlant(ctx, from, chatID, input)
	b.clearConversation(from.ID)
	return err
}

func (b *Bot) finishAddPlant(ctx context.Context, from *tgbotapi.User, chatID int64, input service.PlantInput) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	plant, err := b.plantSvc.AddPlant(ctx, user, input)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return b.sendTextWithRemove(chatID, "Название растения не может быть пустым.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось сохранить растение: %s", escape(err.Error())))
	}

	tasks, err := b.taskSvc.ForPlant(ctx, user, plant.ID)
	if err != nil {
		log.Printf("list tasks for new plant %d: %v", plant.ID, err)
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Растение добавлено</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", plant.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(plant.Name)))
	if len(plant.ScientificNames) > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Латинское имя:</b> %s\n", escape(plant.ScientificNames[0])))
	}
	if plant.BenchmarkValue != "" {
		summary.WriteString(fmt.Sprintf("• <b>Полив:</b> каждые %s дн.\n", escape(plant.BenchmarkValue)))
	}
	if len(tasks) > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Первый полив:</b> %s\n", tasks[0].DueAt.Format("2006-01-02")))
		summary.WriteString(fmt.Sprintf("• Запланировано задач: %d\n", len(tasks)))
	}

	return b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) handleListPlants(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	plants, err := b.plantSvc.ListPlants(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить растения: %s", escape(err.Error())))
	}
	if len(plants) == 0 {
		return b.sendText(msg.Chat.ID, "У тебя пока нет растений. Добавь первое через /addplant.")
	}

	now := time.Now()
	var builder strings.Builder
	builder.WriteString("🌿 <b>Твои растения</b>\n\n")
	for _, plant := range plants {
		builder.WriteString(fmt.Sprintf("🪴 <b>#%d</b> %s\n", plant.ID, escape(plant.Name)))
		tasks, err := b.taskSvc.ForPlant(ctx, user, plant.ID)
		if err == nil && len(tasks) > 0 {
			next := tasks[0].DueAt
			icon := iconDefault
			if next.Before(now) {
				icon = iconOverdue
			}
			builder.WriteString(fmt.Sprintf("   %s Следующий полив: %s\n", icon, next.Format("2006-01-02")))
		}
		builder.WriteString(fmt.Sprintf("   Карточка: /plant %d\n\n", plant.ID))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handlePlantDetail(ctx context.Context, msg *tgbotapi.Message) error {
	plantID, err := parseIDArgument(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID растения: /plant 3")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	plant, err := b.plantSvc.GetPlant(ctx, user, plantID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "Растение не найдено.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🪴 <b>%s</b> (#%d)\n", escape(plant.Name), plant.ID))
	if len(plant.ScientificNames) > 0 {
		builder.WriteString(fmt.Sprintf("<i>%s</i>\n", escape(strings.Join(plant.ScientificNames, ", "))))
	}
	if plant.Watering != "" {
		builder.WriteString(fmt.Sprintf("💧 Полив: %s\n", escape(plant.Watering)))
	}
	if plant.BenchmarkValue != "" {
		builder.WriteString(fmt.Sprintf("📏 Интервал: каждые %s дн.\n", escape(plant.BenchmarkValue)))
	}
	if len(plant.Sunlight) > 0 {
		builder.WriteString(fmt.Sprintf("☀️ Свет: %s\n", escape(strings.Join(plant.Sunlight, ", "))))
	}
	if plant.Description != "" {
		builder.WriteString(fmt.Sprintf("📝 %s\n", escape(shortText(plant.Description, 300))))
	}

	tasks, err := b.taskSvc.ForPlant(ctx, user, plant.ID)
	if err == nil && len(tasks) > 0 {
		builder.WriteString("\n<b>Ближайшие задачи:</b>\n")
		limit := len(tasks)
		if limit > 5 {
			limit = 5
		}
		now := time.Now()
		for _, task := range tasks[:limit] {
			builder.WriteString(formatTaskLine(task, now))
		}
	}

	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	now := time.Now()
	today, err := b.taskSvc.DueToday(ctx, user, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	upcoming, err := b.taskSvc.Upcoming(ctx, user, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Задачи</b>\n🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Сегодня</b>\n")
	if len(today) == 0 {
		builder.WriteString("— на сегодня поливов нет\n")
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	seen := make(map[uint]bool)
	for _, task := range today {
		builder.WriteString(formatTaskLine(task, now))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortText(task.Title, 24)), fmt.Sprintf("%s%d", cbWaterPrefix, task.ID)),
		})
		seen[task.ID] = true
	}

	builder.WriteString("\n⏳ <b>Ближайшие дни</b>\n")
	rest := 0
	for _, task := range upcoming {
		if seen[task.ID] {
			continue
		}
		builder.WriteString(formatTaskLine(task, now))
		rest++
	}
	if rest == 0 {
		builder.WriteString("— ничего не запланировано\n")
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleOverdue(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	now := time.Now()
	overdue, err := b.taskSvc.Overdue(ctx, user, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(overdue) == 0 {
		return b.sendText(msg.Chat.ID, "🎉 Просроченных поливов нет.")
	}

	var builder strings.Builder
	builder.WriteString("⚠️ <b>Просроченные поливы</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range overdue {
		builder.WriteString(formatTaskLine(task, now))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortText(task.Title, 24)), fmt.Sprintf("%s%d", cbWaterPrefix, task.ID)),
		})
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArgument(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /complete 12")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	return b.completeTask(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, successor, err := b.taskSvc.Complete(ctx, user, taskID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return b.sendText(chatID, "Задача не найдена.")
		case errors.Is(err, service.ErrValidation):
			return b.sendText(chatID, "Задача уже выполнена.")
		default:
			return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
	}

	if successor != nil {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» выполнено.\nСледующий раз: %s.", escape(task.Title), successor.DueAt.Format("2006-01-02")))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ «%s» выполнено.", escape(task.Title)))
}

func (b *Bot) handleDeletePlant(ctx context.Context, msg *tgbotapi.Message) error {
	plantID, err := parseIDArgument(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID растения: /deleteplant 3")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	plant, err := b.plantSvc.GetPlant(ctx, user, plantID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "Растение не найдено.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	text := fmt.Sprintf("Удалить «%s» (#%d) вместе со всеми задачами и напоминаниями?", escape(plant.Name), plant.ID)
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", fmt.Sprintf("%s%d", cbConfirmDelPrefix, plant.ID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Отмена", cbCancelDel),
		),
	)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	switch arg {
	case "on":
		if err := b.userRepo.SetNotificationsEnabled(ctx, user.ID, true); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
		if _, err := b.reminderSvc.RescheduleAll(ctx, time.Now()); err != nil {
			log.Printf("reschedule after enable: %v", err)
		}
		return b.sendText(msg.Chat.ID, "🔔 Напоминания включены.")
	case "off":
		if err := b.userRepo.SetNotificationsEnabled(ctx, user.ID, false); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
		if _, err := b.reminderSvc.RescheduleAll(ctx, time.Now()); err != nil {
			log.Printf("reschedule after disable: %v", err)
		}
		return b.sendText(msg.Chat.ID, "🔕 Напоминания выключены. Задачи продолжают вестись.")
	default:
		state := "включены 🔔"
		if !user.NotificationsEnabled {
			state = "выключены 🔕"
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Сейчас напоминания %s. Используй /notifications on или /notifications off.", state))
	}
}

func (b *Bot) handleReschedule(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	count, err := b.reminderSvc.RescheduleAll(ctx, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось пересобрать напоминания: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("♻️ Напоминания пересобраны: запланировано %d.", count))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(data, cbWaterPrefix):
		taskID, err := parseCallbackID(data, cbWaterPrefix)
		if err != nil {
			return nil
		}
		return b.completeTask(ctx, cb.Message.Chat.ID, user, taskID)
	case strings.HasPrefix(data, cbConfirmDelPrefix):
		plantID, err := parseCallbackID(data, cbConfirmDelPrefix)
		if err != nil {
			return nil
		}
		if err := b.plantSvc.DeletePlant(ctx, user, plantID); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(cb.Message.Chat.ID, "Растение не найдено или уже удалено.")
			}
			return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
		return b.sendText(cb.Message.Chat.ID, "🗑 Растение удалено вместе с задачами и напоминаниями.")
	case data == cbCancelDel:
		return b.sendText(cb.Message.Chat.ID, "↩️ Удаление отменено.")
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelPlants):
		return true, b.handleListPlants(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleTasks(ctx, msg)
	case strings.ToLower(menuLabelAdd):
		return true, b.startAddPlantConversation(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func parseIDArgument(args string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func formatTaskLine(task model.Task, now time.Time) string {
	icon := iconDefault
	d := task.DueAt.In(now.Location())
	if now.After(d) {
		icon = iconOverdue
	} else if d.Sub(now) <= 48*time.Hour {
		icon = iconDue
	}
	return fmt.Sprintf("%s <b>#%d</b> %s — %s\n", icon, task.ID, escape(task.Title), d.Format("2006-01-02"))
}

func shortText(text string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPlants),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func manualKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnManual),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isManualInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnManual) || value == "вручную"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}

func escape(s string) string {
	return html.EscapeString(s)
}
