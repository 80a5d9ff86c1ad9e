package plug

import (
	"context"
	"fmt"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/content"
	"github.com/fxsml/goplug/message"
)

type formatOptions struct {
	contentType string
	format      content.FormatFunc
}

// Format returns a plug that serializes the body with a registered content
// format and stamps ContentType. Options: the content type as a string, or
// a map with key "content_type"; default "text/plain". An unregistered
// content type fails the pipeline build.
func Format() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			contentType, err := formatContentType(opts, "format")
			if err != nil {
				return nil, err
			}
			formatFn, _, err := content.LookupFormat(contentType)
			if err != nil {
				return nil, fmt.Errorf("format: %w", err)
			}
			return formatOptions{contentType: contentType, format: formatFn}, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(formatOptions)
			data, err := o.format(msg.Body)
			if err != nil {
				return msg, fmt.Errorf("plug: format: %w", err)
			}
			msg.Body = data
			msg.ContentType = o.contentType
			return next(ctx, msg)
		},
	)
}

type parseOptions struct {
	contentType string
	parse       content.ParseFunc
}

// Parse returns a plug that deserializes a binary body with a registered
// content format and stamps ContentType. Options as for Format.
func Parse() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			contentType, err := formatContentType(opts, "parse")
			if err != nil {
				return nil, err
			}
			_, parseFn, err := content.LookupFormat(contentType)
			if err != nil {
				return nil, fmt.Errorf("parse: %w", err)
			}
			return parseOptions{contentType: contentType, parse: parseFn}, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(parseOptions)
			data, err := msg.BodyBytes()
			if err != nil {
				return msg, fmt.Errorf("plug: parse: %w", err)
			}
			body, err := o.parse(data)
			if err != nil {
				return msg, fmt.Errorf("plug: parse: %w", err)
			}
			msg.Body = body
			msg.ContentType = o.contentType
			return next(ctx, msg)
		},
	)
}

func formatContentType(opts any, plugName string) (string, error) {
	contentType, err := stringOpt(opts, "content_type")
	if err != nil {
		return "", fmt.Errorf("%s: %w", plugName, err)
	}
	if contentType == "" {
		contentType = content.TypeText
	}
	return contentType, nil
}

type encodeOptions struct {
	encoding string
	encode   content.EncodeFunc
}

// Encode returns a plug that applies a registered transfer encoding to a
// binary body and stamps ContentEncoding. Options: the encoding name as a
// string, or a map with key "encoding"; default "identity". An unregistered
// encoding fails the pipeline build.
func Encode() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			name, err := encodingName(opts, "encode")
			if err != nil {
				return nil, err
			}
			encodeFn, _, err := content.LookupEncoding(name)
			if err != nil {
				return nil, fmt.Errorf("encode: %w", err)
			}
			return encodeOptions{encoding: name, encode: encodeFn}, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(encodeOptions)
			data, err := msg.BodyBytes()
			if err != nil {
				return msg, fmt.Errorf("plug: encode: %w", err)
			}
			encoded, err := o.encode(data)
			if err != nil {
				return msg, fmt.Errorf("plug: encode: %w", err)
			}
			msg.Body = encoded
			msg.ContentEncoding = o.encoding
			return next(ctx, msg)
		},
	)
}

type decodeOptions struct {
	encoding string
	decode   content.DecodeFunc
}

// Decode returns a plug that reverses a registered transfer encoding on a
// binary body and resets ContentEncoding to identity. Options as for Encode.
func Decode() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			name, err := encodingName(opts, "decode")
			if err != nil {
				return nil, err
			}
			_, decodeFn, err := content.LookupEncoding(name)
			if err != nil {
				return nil, fmt.Errorf("decode: %w", err)
			}
			return decodeOptions{encoding: name, decode: decodeFn}, nil
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			o := opts.(decodeOptions)
			data, err := msg.BodyBytes()
			if err != nil {
				return msg, fmt.Errorf("plug: decode: %w", err)
			}
			decoded, err := o.decode(data)
			if err != nil {
				return msg, fmt.Errorf("plug: decode: %w", err)
			}
			msg.Body = decoded
			// The encoding has been undone.
			msg.ContentEncoding = content.EncodingIdentity
			return next(ctx, msg)
		},
	)
}

func encodingName(opts any, plugName string) (string, error) {
	name, err := stringOpt(opts, "encoding")
	if err != nil {
		return "", fmt.Errorf("%s: %w", plugName, err)
	}
	if name == "" {
		name = content.EncodingIdentity
	}
	return name, nil
}
