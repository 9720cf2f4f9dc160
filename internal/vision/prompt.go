package vision

import "strings"

const geoContextPlaceholder = "{{GEO_CONTEXT}}"

// promptTemplate is the instruction sent with every image. The geographic
// context block, when present, is inserted right after the JSON schema.
const promptTemplate = `Analiza esta imagen y proporciona información detallada en formato JSON con la siguiente estructura:
{
  "name": "Nombre del lugar, monumento, animal o concepto principal",
  "type": "LUGAR/MONUMENTO/NATURALEZA/ANIMAL/OBJETO/OTRO",
  "category": "Categoría específica (LANDMARK/NATURE/WILDLIFE/FOOD/ARCHITECTURE/ART/CULTURE/TRANSPORTATION)",
  "tags": ["descriptive", "searchable", "keywords"],
  "description": "Descripción detallada de lo que se ve",
  "rarity": "COMMON/UNCOMMON/RARE/VERY_RARE/LEGENDARY",
  "confidence": 0.95,
  "difficulty": "EASY/MEDIUM/HARD/EXPERT",
  "specificity_level": "Nivel de especificidad de la identificación",
  "broader_context": "Contexto más amplio o información adicional",
  "encounter_rarity": "Qué tan difícil es encontrar esto aquí",
  "authenticity": "AUTHENTIC/REPLICA/SCREEN_PHOTO/UNCERTAIN",
  "geographic_match": true,
  "verified": true,
  "authenticity_reasoning": "Explicación de por qué es auténtico, réplica o foto de pantalla basándose en ubicación y contexto",
  "verification_reasoning": "Explicación de por qué está verificado o no basándose en conocimiento geográfico del hábitat/ubicación natural"
}` + geoContextPlaceholder + `

REGLAS para tags (3-8 tags por imagen):
- Incluir: características físicas, contexto cultural, época, materiales, colores dominantes, ubicación geográfica
- Formato: lowercase, sin acentos, singular, en español
- Ejemplos: ["volcanico", "unesco", "colonial", "turquesa", "cascada", "tropical"]
- Evitar: duplicar el nombre exacto o la categoría

REGLAS para difficulty:
- EASY: Muy común, fácil de encontrar, visible desde lejos
- MEDIUM: Requiere buscar un poco, moderadamente común
- HARD: Difícil de encontrar, requiere esfuerzo o conocimiento local
- EXPERT: Extremadamente raro, requiere condiciones especiales o permiso

REGLAS para authenticity (MUY IMPORTANTE - USA EL CONTEXTO GEOGRÁFICO Y TEMPORAL):
- AUTHENTIC: Objeto/lugar real capturado en su ubicación original. Verifica:
  * Ubicación GPS coincide con donde debería estar el objeto
  * Iluminación coherente con hora del día y posición solar calculada
  * Sombras apuntan en dirección correcta según posición del sol
  * Si es NOCHE (elevación solar negativa), imagen debe ser nocturna
- REPLICA: Copia o réplica del objeto original en diferente ubicación (ej: Torre Eiffel en Las Vegas cuando GPS dice USA)
- SCREEN_PHOTO: Foto de una pantalla, fotografía impresa, póster o imagen digital. Indicadores críticos:
  * Píxeles visibles, patrón de matriz de pantalla
  * Brillo artificial o reflexiones de vidrio/pantalla
  * Iluminación inconsistente con hora y posición solar (ej: sol brillante cuando es noche)
  * Sombras en dirección imposible para la ubicación/hora
  * Marco de foto, borde de pantalla o dispositivo visible
  * Calidad de imagen degradada (foto de foto)
- UNCERTAIN: No hay suficiente información para determinar

REGLAS para geographic_match:
- true: La ubicación GPS es coherente con el objeto identificado Y la iluminación coincide con hora/posición solar
- false: La ubicación GPS NO coincide O hay inconsistencias temporales graves
- null: No hay suficiente contexto geográfico para determinar

REGLAS para verified (VALIDACIÓN GEOGRÁFICA ESTRICTA):
Este campo certifica que el objeto/animal/lugar es REALMENTE observable desde la ubicación GPS proporcionada.

✅ verified = true SOLO SI SE CUMPLEN TODAS:
1. authenticity = "AUTHENTIC" (no réplica, no screen_photo)
2. geographic_match = true (GPS coincide)
3. Para ANIMALES: El animal existe naturalmente en esa región O está en un zoo/santuario CONOCIDO en esa ubicación específica
   - Ejemplo: León en Kenia (Masai Mara) → verified=true
   - Ejemplo: Elefante en Costa Rica (ubicación aleatoria) → verified=false
   - Ejemplo: Elefante en "Zoo Simón Bolívar, San José, CR" → verified=true (zoo conocido)
4. Para LUGARES/MONUMENTOS: El lugar existe en esas coordenadas GPS exactas
   - Ejemplo: Torre Eiffel en París (48.858°N, 2.294°E) → verified=true
   - Ejemplo: Torre Eiffel en Las Vegas → verified=false (réplica)
5. Para NATURALEZA: El fenómeno natural es posible en esa ubicación geográfica
   - Ejemplo: Volcán Arenal en La Fortuna, CR → verified=true
   - Ejemplo: Glaciar en Ecuador → verified=false (geográficamente improbable)
6. Iluminación y hora coherentes (no foto de pantalla)

❌ verified = false SI CUALQUIERA:
- Es una réplica en ubicación diferente
- Es foto de pantalla/póster
- Animal fuera de su hábitat natural y NO en zoo conocido
- Ubicación GPS imposible para el objeto
- Inconsistencias temporales (hora vs iluminación)

⚠️ IMPORTANTE: No asumas que hay zoos o santuarios a menos que el contexto geográfico mencione un lugar específico conocido.

Responde ÚNICAMENTE con el JSON, sin texto adicional.`

const (
	contextHeader = "\n\nCONTEXTO GEOGRÁFICO Y TEMPORAL DE LA CAPTURA:\n"
	contextFooter = "\n\nUSA ESTE CONTEXTO PARA VALIDAR AUTENTICIDAD:\n" +
		"- Verificar coherencia entre iluminación de la imagen y posición solar esperada\n" +
		"- Si es NOCHE pero imagen muestra sol brillante → probablemente SCREEN_PHOTO\n" +
		"- Si dirección de sombras no coincide con posición solar → SCREEN_PHOTO o editada\n" +
		"- Comparar dirección de cámara con posición del sol para validar iluminación\n" +
		"- Diferenciar entre originales y réplicas basándose en ubicación GPS\n" +
		"- Detectar fotos de pantallas por inconsistencias temporales/lumínicas\n"
)

// ContextBlock wraps context lines in the header and validation hints.
// No lines yields an empty block.
func ContextBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return contextHeader + strings.Join(lines, "\n") + contextFooter
}

// BuildPrompt returns the full instruction text for the given context lines.
func BuildPrompt(lines []string) string {
	return strings.Replace(promptTemplate, geoContextPlaceholder, ContextBlock(lines), 1)
}
