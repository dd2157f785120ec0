package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"tutoriasBot/internal/domain/models"
)

// Callback — типизированное представление callback-данных инлайн-кнопок.
// Строка декодируется один раз на границе транспорта; обработчики
// работают только с вариантами этого типа.
type Callback interface {
	callback()
}

type CarreraChoice struct{ ID int64 }
type DaySelect struct{ Day models.Weekday }
type SlotAdd struct{}
type SlotModify struct{ Index int }
type SlotDelete struct{ Index int }
type SlotSave struct{}
type SlotBack struct{}
type SubjectChoice struct{ ID int64 }
type SubjectSkip struct{}
type PurposeChoice struct{ Purpose models.Purpose }
type Disposition struct{ Keep bool }
type DeleteConfirm struct {
	RoomID   int64
	TgChatID int64
	Nonce    string
}
type EvictStudent struct{ TgUserID int64 }
type EvictAll struct{}
type SelfExit struct{}
type RateStars struct{ Stars int }
type RateComment struct{}
type RateFinish struct{}
type Cancel struct{}

func (CarreraChoice) callback() {}
func (DaySelect) callback()     {}
func (SlotAdd) callback()       {}
func (SlotModify) callback()    {}
func (SlotDelete) callback()    {}
func (SlotSave) callback()      {}
func (SlotBack) callback()      {}
func (SubjectChoice) callback() {}
func (SubjectSkip) callback()   {}
func (PurposeChoice) callback() {}
func (Disposition) callback()   {}
func (DeleteConfirm) callback() {}
func (EvictStudent) callback()  {}
func (EvictAll) callback()      {}
func (SelfExit) callback()      {}
func (RateStars) callback()     {}
func (RateComment) callback()   {}
func (RateFinish) callback()    {}
func (Cancel) callback()        {}

// Префиксы callback-данных. Гарды движка сверяются с ними же.
const (
	PrefixCarrera    = "carrera_"
	PrefixDay        = "dia_"
	PrefixSlotModify = "slot_mod_"
	PrefixSlotDelete = "slot_del_"
	PrefixSubject    = "asig_"
	PrefixPurpose    = "prop_"
	PrefixDeleteConf = "del_conf_"
	PrefixEvict      = "fin_est_"
	PrefixStars      = "punt_"

	DataSlotAdd      = "slot_add"
	DataSlotSave     = "slot_save"
	DataSlotBack     = "slot_volver"
	DataSubjectSkip  = "asig_omitir"
	DataDispKeep     = "disp_mantener"
	DataDispEvict    = "disp_expulsar"
	DataEvictAll     = "fin_todos"
	DataSelfExit     = "fin_salir"
	DataRateComment  = "punt_coment"
	DataRateFinish   = "punt_fin"
	DataCancel       = "cancelar"
)

// DecodeCallback разбирает callback-данные в типизированный вариант
func DecodeCallback(data string) (Callback, error) {
	switch data {
	case DataSlotAdd:
		return SlotAdd{}, nil
	case DataSlotSave:
		return SlotSave{}, nil
	case DataSlotBack:
		return SlotBack{}, nil
	case DataSubjectSkip:
		return SubjectSkip{}, nil
	case DataDispKeep:
		return Disposition{Keep: true}, nil
	case DataDispEvict:
		return Disposition{Keep: false}, nil
	case DataEvictAll:
		return EvictAll{}, nil
	case DataSelfExit:
		return SelfExit{}, nil
	case DataRateComment:
		return RateComment{}, nil
	case DataRateFinish:
		return RateFinish{}, nil
	case DataCancel:
		return Cancel{}, nil
	}

	switch {
	case strings.HasPrefix(data, PrefixCarrera):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, PrefixCarrera), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad carrera callback %q: %w", data, err)
		}
		return CarreraChoice{ID: id}, nil

	case strings.HasPrefix(data, PrefixDay):
		day, ok := models.ParseWeekday(strings.TrimPrefix(data, PrefixDay))
		if !ok {
			return nil, fmt.Errorf("bad day callback %q", data)
		}
		return DaySelect{Day: day}, nil

	case strings.HasPrefix(data, PrefixSlotModify):
		i, err := strconv.Atoi(strings.TrimPrefix(data, PrefixSlotModify))
		if err != nil {
			return nil, fmt.Errorf("bad slot callback %q: %w", data, err)
		}
		return SlotModify{Index: i}, nil

	case strings.HasPrefix(data, PrefixSlotDelete):
		i, err := strconv.Atoi(strings.TrimPrefix(data, PrefixSlotDelete))
		if err != nil {
			return nil, fmt.Errorf("bad slot callback %q: %w", data, err)
		}
		return SlotDelete{Index: i}, nil

	case strings.HasPrefix(data, PrefixSubject):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, PrefixSubject), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad subject callback %q: %w", data, err)
		}
		return SubjectChoice{ID: id}, nil

	case strings.HasPrefix(data, PrefixPurpose):
		purpose, ok := models.ParsePurpose(strings.TrimPrefix(data, PrefixPurpose))
		if !ok {
			return nil, fmt.Errorf("bad purpose callback %q", data)
		}
		return PurposeChoice{Purpose: purpose}, nil

	case strings.HasPrefix(data, PrefixDeleteConf):
		rest := strings.TrimPrefix(data, PrefixDeleteConf)
		parts := strings.SplitN(rest, "_", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad delete callback %q", data)
		}
		roomID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad delete callback %q: %w", data, err)
		}
		chatID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad delete callback %q: %w", data, err)
		}
		return DeleteConfirm{RoomID: roomID, TgChatID: chatID, Nonce: parts[2]}, nil

	case strings.HasPrefix(data, PrefixEvict):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, PrefixEvict), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad evict callback %q: %w", data, err)
		}
		return EvictStudent{TgUserID: id}, nil

	case strings.HasPrefix(data, PrefixStars):
		n, err := strconv.Atoi(strings.TrimPrefix(data, PrefixStars))
		if err != nil || !models.ValidStars(n) {
			return nil, fmt.Errorf("bad stars callback %q", data)
		}
		return RateStars{Stars: n}, nil
	}

	return nil, fmt.Errorf("unknown callback %q", data)
}

// EncodeCarrera и прочие Encode-функции строят callback-данные для кнопок
func EncodeCarrera(id int64) string { return PrefixCarrera + strconv.FormatInt(id, 10) }

func EncodeDay(day models.Weekday) string { return PrefixDay + string(day) }

func EncodeSlotModify(i int) string { return PrefixSlotModify + strconv.Itoa(i) }

func EncodeSlotDelete(i int) string { return PrefixSlotDelete + strconv.Itoa(i) }

func EncodeSubject(id int64) string { return PrefixSubject + strconv.FormatInt(id, 10) }

func EncodePurpose(p models.Purpose) string { return PrefixPurpose + string(p) }

func EncodeDeleteConfirm(roomID, tgChatID int64, nonce string) string {
	return fmt.Sprintf("%s%d_%d_%s", PrefixDeleteConf, roomID, tgChatID, nonce)
}

func EncodeEvict(tgUserID int64) string { return PrefixEvict + strconv.FormatInt(tgUserID, 10) }

func EncodeStars(n int) string { return PrefixStars + strconv.Itoa(n) }
