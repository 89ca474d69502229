// Package wire перетворює довільні вкладені значення на дерево примітивів,
// безпечне для транспортного каналу. Жоден нативний тип драйвера сховища
// (ідентифікатор, мітка часу, бінарний маркер) не має перетнути межу каналу.
package wire

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Serialize рекурсивно перетворює значення на транспортно-безпечну форму.
// Тотальна функція: ніколи не повертає помилку. Правила:
//   - мапи та послідовності обробляються поелементно зі збереженням порядку;
//   - значення часу рендеряться як ISO-8601 (RFC 3339) в UTC;
//   - ідентифікатори (uuid.UUID) рендеряться у канонічній рядковій формі;
//   - бінарні маркери ([]byte) кодуються у base64;
//   - решта примітивів проходить без змін.
//
// Гілка за замовчуванням пропускає значення як є, тому множина вхідних
// типів закрита: конверти повідомлень складаються лише з перелічених
// вище видів. Новий тип драйвера у конверті потребує власної гілки тут.
func Serialize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[key] = Serialize(elem)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Serialize(elem)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Serialize(elem)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = elem
		}
		return out
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return v.String()
	case []uuid.UUID:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = elem.String()
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return v
	}
}
