package fmp

// Kind — вид исхода запроса.
type Kind int

const (
	// KindFailure — запрос не удался (см. Result.Err). Нулевое значение Result.
	KindFailure Kind = iota
	// KindEmpty — успешный ответ без данных: пустое тело, [] или {}.
	KindEmpty
	// KindRecords — массив объектов.
	KindRecords
	// KindRecord — одиночный объект.
	KindRecord
	// KindValue — любая другая форма JSON (массив строк, скаляр).
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindRecords:
		return "records"
	case KindRecord:
		return "record"
	case KindValue:
		return "value"
	default:
		return "failure"
	}
}

// Result — исход одного Fetch.
//
// Заполнено только поле, соответствующее Kind.
type Result struct {
	Kind    Kind
	Records RecordSet
	Record  Record
	Value   any
	Err     *FetchError
}

// Failure создает Result с ошибкой.
func Failure(err *FetchError) Result {
	return Result{Kind: KindFailure, Err: err}
}

// Empty создает успешный Result без данных.
func Empty() Result {
	return Result{Kind: KindEmpty}
}

// Records создает Result с набором записей. Пустой набор даёт KindEmpty.
func Records(rs RecordSet) Result {
	if len(rs) == 0 {
		return Empty()
	}
	return Result{Kind: KindRecords, Records: rs}
}

// Single создает Result с одиночной записью.
func Single(r Record) Result {
	return Result{Kind: KindRecord, Record: r}
}

// Failed сообщает, что запрос не удался.
func (r Result) Failed() bool {
	return r.Kind == KindFailure
}

// IsEmpty сообщает, что запрос выполнен, но данных нет.
func (r Result) IsEmpty() bool {
	return r.Kind == KindEmpty
}

// RecordSet возвращает данные как набор записей.
//
// Одиночная запись превращается в набор из одного элемента, Empty — в
// пустой (не nil) набор. Failure и KindValue дают nil.
func (r Result) RecordSet() RecordSet {
	switch r.Kind {
	case KindRecords:
		return r.Records
	case KindRecord:
		return RecordSet{r.Record}
	case KindEmpty:
		return RecordSet{}
	default:
		return nil
	}
}

// Data возвращает данные в форме исходного ответа:
// nil при отказе, пустой набор при Empty, иначе разобранный JSON.
func (r Result) Data() any {
	switch r.Kind {
	case KindRecords:
		return r.Records
	case KindRecord:
		return r.Record
	case KindValue:
		return r.Value
	case KindEmpty:
		return RecordSet{}
	default:
		return nil
	}
}
