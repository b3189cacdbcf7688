package images

import (
	"fmt"
	"strings"
)

const openAPITemplate = `/upload:
  post:
    tags:
      - %[2]s
    summary: Upload image
    description: |
      Decodes a data URI style payload and stores it under a generated name.
      Failures are reported in the body; the status code is always 200.
    requestBody:
      required: true
      content:
        application/json:
          schema:
            type: object
            properties:
              image_data:
                type: string
                description: Payload of the form "<metadata>,<base64 data>"
                example: data:image/png;base64,iVBORw0KGgo=
            required:
              - image_data
    responses:
      '200':
        description: Stored image reference, or a failure description
        content:
          application/json:
            schema:
              oneOf:
                - type: object
                  properties:
                    url:
                      type: string
                      description: Public URL of the stored image
                    filename:
                      type: string
                      description: Generated file name
                  required:
                    - url
                    - filename
                - type: object
                  properties:
                    error:
                      type: string
                    status:
                      type: string
                      enum:
                        - failed
                    kind:
                      type: string
                      enum:
                        - format
                        - io
                  required:
                    - error
                    - status
%[1]s:
  get:
    tags:
      - %[2]s
    summary: List images
    description: Lists stored images, newest first
    parameters:
      - name: limit
        in: query
        required: false
        schema:
          type: integer
          minimum: 1
          default: 100
    responses:
      '200':
        description: Stored images
        content:
          application/json:
            schema:
              type: object
              properties:
                images:
                  type: array
                  items:
                    type: object
                    properties:
                      filename:
                        type: string
                      url:
                        type: string
                      size:
                        type: integer
                        format: int64
                      modified_at:
                        type: string
                        format: date-time
                    required:
                      - filename
                      - url
                      - size
                      - modified_at
      '400':
        description: Bad request - invalid limit
      '500':
        description: Internal server error`

func GetOpenAPISpec(rootPath, tag string) string {
	if rootPath == "" || tag == "" {
		return ""
	}

	// Ensure rootPath doesn't have trailing slash
	rootPath = strings.TrimSuffix(rootPath, "/")

	return fmt.Sprintf(openAPITemplate, rootPath, tag)
}
